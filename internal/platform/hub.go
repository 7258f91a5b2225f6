package platform

import (
	"context"
	"fmt"
	log "log/slog"
	"strings"
	"time"

	"speechcmd/pkg/protocol"
)

// Requester sends one protocol frame and returns the answer.
type Requester interface {
	Request(ctx context.Context, m protocol.Message) (*protocol.Message, error)
}

// Hub forwards actions to a device shard on the websocket hub. The device
// answers OK:<NOUN>[:ARGS] or ERR:<REASON>.
type Hub struct {
	client  Requester
	device  string
	timeout time.Duration
}

func NewHub(client Requester, device string, timeout time.Duration) *Hub {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Hub{client: client, device: device, timeout: timeout}
}

func (h *Hub) LaunchCamera(ctx context.Context) error {
	_, err := h.do(ctx, "RUN", "CAMERA")
	return err
}

func (h *Hub) CapturePhoto(ctx context.Context) error {
	_, err := h.do(ctx, "RUN", "PHOTO")
	return err
}

func (h *Hub) SetTorch(ctx context.Context, on bool) error {
	_, err := h.do(ctx, "SET", "TORCH", strings.ToUpper(onOff(on)))
	return err
}

func (h *Hub) AdjustVolume(ctx context.Context, adj VolumeAdjust) error {
	_, err := h.do(ctx, "SET", "VOLUME", strings.ToUpper(string(adj)))
	return err
}

func (h *Hub) AdjustBrightness(ctx context.Context, up bool) error {
	dir := "DOWN"
	if up {
		dir = "UP"
	}
	_, err := h.do(ctx, "SET", "BRIGHTNESS", dir)
	return err
}

func (h *Hub) RadioEnabled(ctx context.Context, radio Radio) (bool, error) {
	rep, err := h.do(ctx, "GET", strings.ToUpper(string(radio)))
	if err != nil {
		return false, err
	}
	return strings.EqualFold(rep.Arg(0), "ON"), nil
}

func (h *Hub) SetRadio(ctx context.Context, radio Radio, on bool) error {
	_, err := h.do(ctx, "SET", strings.ToUpper(string(radio)), strings.ToUpper(onOff(on)))
	return err
}

func (h *Hub) OpenSettings(ctx context.Context, panel SettingsPanel) error {
	_, err := h.do(ctx, "RUN", "SETTINGS", strings.ToUpper(string(panel)))
	return err
}

func (h *Hub) GoHome(ctx context.Context) error {
	_, err := h.do(ctx, "RUN", "HOME")
	return err
}

// Granted asks the device; an unreachable device counts as not granted.
func (h *Hub) Granted(perm Permission) bool {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	rep, err := h.do(ctx, "GET", "PERMISSION", strings.ToUpper(string(perm)))
	if err != nil {
		return false
	}
	return strings.EqualFold(rep.Arg(0), "GRANTED")
}

func (h *Hub) do(ctx context.Context, verb, noun string, args ...string) (*protocol.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	req := protocol.Message{To: h.device, Verb: verb, Noun: noun, Args: args}
	rep, err := h.client.Request(ctx, req)
	if err != nil {
		log.Warn("Hub request failed", "request", req.String(), "err", err)
		return nil, fmt.Errorf("platform: hub %s %s: %w", verb, noun, err)
	}
	if rep.IsOK() {
		return rep, nil
	}
	return nil, hubError(rep)
}

func hubError(rep *protocol.Message) error {
	switch rep.Noun {
	case "UNSUPPORTED":
		return ErrUnsupported
	case "UNAVAILABLE":
		return ErrUnavailable
	case "DENIED":
		return ErrPermission
	default:
		if len(rep.Args) > 0 {
			return fmt.Errorf("platform: device error %s: %s", rep.Noun, strings.Join(rep.Args, " "))
		}
		return fmt.Errorf("platform: device error %s", rep.Noun)
	}
}
