//go:build linux

package netio

import (
	"fmt"
	"log/slog"
)

// Select constructs the best available Backend for cfg. KindAuto
// probes capabilities in descending preference order — line-rate,
// then kernel-bypass, then raw-socket — falling back and logging a
// warning whenever a more capable backend can't be constructed,
// rather than failing the whole run over a missing driver feature.
func Select(cfg SelectConfig, logger *slog.Logger) (Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Kind {
	case KindRawSocket:
		return NewRawSocketBackend(cfg.Interface, cfg.Promisc)
	case KindXDP:
		return NewXDPBackend(cfg.Interface, 0, cfg.UMEMFrames, cfg.FrameSize)
	case KindLineRate:
		return NewLineRateBackend(cfg.Interface, 1)
	case KindAuto, "":
		return autoSelect(cfg, logger)
	default:
		return nil, fmt.Errorf("select backend %q: %w", cfg.Kind, ErrUnsupportedBackend)
	}
}

func autoSelect(cfg SelectConfig, logger *slog.Logger) (Backend, error) {
	if b, err := NewLineRateBackend(cfg.Interface, 1); err == nil {
		return b, nil
	} else {
		logger.Warn("line-rate backend unavailable, trying kernel-bypass",
			slog.String("interface", cfg.Interface), slog.String("error", err.Error()))
	}

	if probeXDPSupport() {
		if b, err := NewXDPBackend(cfg.Interface, 0, cfg.UMEMFrames, cfg.FrameSize); err == nil {
			return b, nil
		} else {
			logger.Warn("kernel-bypass backend unavailable, falling back to raw socket",
				slog.String("interface", cfg.Interface), slog.String("error", err.Error()))
		}
	}

	b, err := NewRawSocketBackend(cfg.Interface, cfg.Promisc)
	if err != nil {
		return nil, fmt.Errorf("select backend: no backend available for %s: %w", cfg.Interface, err)
	}
	return b, nil
}
