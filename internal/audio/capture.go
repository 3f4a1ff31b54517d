package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"
)

// captureBacklog is how many frames may queue between the device callback
// and the reader before new frames are dropped.
const captureBacklog = 256

// CaptureSource streams frames from a microphone.
type CaptureSource struct {
	ctx       *malgo.AllocatedContext
	format    Format
	frameSize int

	mu      sync.Mutex
	pending []int16
	next    int
	// stopDevice stops the device and waits for its callback thread.
	stopDevice func()

	frames    chan Frame
	done      chan struct{}
	closeOnce sync.Once
	dropped   atomic.Int64
}

// NewCaptureSource opens the capture device whose name contains deviceName
// (the default device when empty) and starts streaming 16-bit mono frames of
// duration frameDur. Call Close() when done.
func NewCaptureSource(sampleRate int, frameDur time.Duration, deviceName string) (*CaptureSource, error) {
	format := Mono16(sampleRate)
	frameSize := format.FrameSize(frameDur)
	if frameSize <= 0 {
		return nil, fmt.Errorf("audio: frame duration %s too short for %s", frameDur, format)
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("initializing audio context: %w", err)
	}

	c := newCaptureSource(format, frameSize)
	c.ctx = ctx

	deviceCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceCfg.Capture.Format = malgo.FormatS16
	deviceCfg.Capture.Channels = 1
	deviceCfg.SampleRate = uint32(sampleRate)

	if deviceName != "" {
		info, err := findCaptureDevice(ctx, deviceName)
		if err != nil {
			c.Close()
			return nil, err
		}
		deviceCfg.Capture.DeviceID = info.ID.Pointer()
	}

	device, err := malgo.InitDevice(ctx.Context, deviceCfg, malgo.DeviceCallbacks{Data: c.onData})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("initializing capture device: %w", err)
	}
	c.mu.Lock()
	c.stopDevice = device.Uninit
	c.mu.Unlock()

	if err := device.Start(); err != nil {
		c.Close()
		return nil, fmt.Errorf("starting capture device: %w", err)
	}

	return c, nil
}

func newCaptureSource(format Format, frameSize int) *CaptureSource {
	return &CaptureSource{
		format:    format,
		frameSize: frameSize,
		frames:    make(chan Frame, captureBacklog),
		done:      make(chan struct{}),
	}
}

// findCaptureDevice returns the first capture device whose name contains name.
func findCaptureDevice(ctx *malgo.AllocatedContext, name string) (malgo.DeviceInfo, error) {
	devices, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return malgo.DeviceInfo{}, fmt.Errorf("listing capture devices: %w", err)
	}
	for _, d := range devices {
		if strings.Contains(d.Name(), name) {
			return d, nil
		}
	}
	return malgo.DeviceInfo{}, fmt.Errorf("audio: no capture device matching %q", name)
}

// Format returns the capture format.
func (c *CaptureSource) Format() Format { return c.format }

// Next blocks until a full frame has been captured. It returns io.EOF after Close.
func (c *CaptureSource) Next() (Frame, error) {
	select {
	case f := <-c.frames:
		return f, nil
	case <-c.done:
		return Frame{}, io.EOF
	}
}

// Dropped reports how many frames were discarded because the reader fell behind.
func (c *CaptureSource) Dropped() int64 {
	return c.dropped.Load()
}

// Close stops the device and releases all audio resources. Pending Next
// calls return io.EOF.
func (c *CaptureSource) Close() error {
	c.closeOnce.Do(func() { close(c.done) })

	// The callback thread takes mu in push, so the device is stopped
	// without holding it.
	c.mu.Lock()
	stop := c.stopDevice
	c.stopDevice = nil
	c.mu.Unlock()
	if stop != nil {
		stop()
	}

	if c.ctx != nil {
		if err := c.ctx.Uninit(); err != nil {
			return fmt.Errorf("uninitializing audio context: %w", err)
		}
		c.ctx.Free()
		c.ctx = nil
	}
	return nil
}

// onData is the malgo callback invoked when audio data is available.
// pSample holds little-endian int16 samples.
func (c *CaptureSource) onData(_, pSample []byte, frameCount uint32) {
	c.push(bytesToInt16(pSample, frameCount))
}

// push appends samples and emits every complete frame.
func (c *CaptureSource) push(samples []int16) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending = append(c.pending, samples...)
	for len(c.pending) >= c.frameSize {
		frame := Frame{Index: c.next, Samples: append([]int16(nil), c.pending[:c.frameSize]...)}
		c.pending = c.pending[c.frameSize:]
		c.next++

		select {
		case c.frames <- frame:
		default:
			c.dropped.Add(1)
		}
	}
}

// bytesToInt16 converts raw little-endian bytes to at most sampleCount int16 samples.
func bytesToInt16(data []byte, sampleCount uint32) []int16 {
	samples := make([]int16, 0, sampleCount)
	for i := uint32(0); i < sampleCount; i++ {
		offset := i * 2
		if offset+2 > uint32(len(data)) {
			break
		}
		samples = append(samples, int16(binary.LittleEndian.Uint16(data[offset:offset+2])))
	}
	return samples
}
