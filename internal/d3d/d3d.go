// Package d3d provides the Direct3D 11 device, capture item and
// Windows.Graphics.Capture frame pool behind capture.Device.
package d3d

import (
	"errors"

	"github.com/breeze-rmm/wgcapture/internal/logging"
	"github.com/breeze-rmm/wgcapture/pkg/capture"
)

var log = logging.L("d3d")

// ErrNotSupported is returned when Windows.Graphics.Capture is not available.
var ErrNotSupported = errors.New("windows graphics capture not supported on this platform")

// ErrTargetNotFound is returned when the requested monitor or window does not exist.
var ErrTargetNotFound = errors.New("capture target not found")

var _ capture.Device = (*Device)(nil)
