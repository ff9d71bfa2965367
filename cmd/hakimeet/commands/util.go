package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ultralan/HakiMeet/pkg/cli"
	ds "github.com/ultralan/HakiMeet/pkg/doubaospeech"
)

const (
	// 100ms of 16kHz s16le mono
	audioChunkSize     = 3200
	audioChunkInterval = 100 * time.Millisecond
)

// createClient creates a realtime dialogue client from context configuration
func createClient(ctx *cli.Context, extra ...ds.Option) (*ds.Client, error) {
	if ctx.Client == nil || ctx.Client.AppID == "" {
		return nil, fmt.Errorf("client credentials not configured, run: hakimeet config add-context")
	}
	if ctx.Client.AccessKey == "" {
		return nil, fmt.Errorf("access key not configured for context %q", ctx.Name)
	}

	opts := []ds.Option{
		ds.WithV2APIKey(ctx.Client.AccessKey, ctx.Client.AppKey),
	}
	if ctx.WSURL != "" {
		opts = append(opts, ds.WithWebSocketURL(ctx.WSURL))
	}
	if ctx.ResourceID != "" {
		opts = append(opts, ds.WithResourceID(ctx.ResourceID))
	}
	if ctx.Timeout > 0 {
		opts = append(opts, ds.WithTimeout(time.Duration(ctx.Timeout)*time.Second))
	}
	if ctx.MaxRetries > 0 {
		opts = append(opts, ds.WithRetries(ctx.MaxRetries))
	}
	opts = append(opts, extra...)

	return ds.NewClient(ctx.Client.AppID, opts...), nil
}

// loadRealtimeConfig reads the session config from -f, or builds the default
// one around systemRole.
func loadRealtimeConfig(cliCtx *cli.Context, systemRole string) (*ds.RealtimeConfig, error) {
	config := ds.DefaultRealtimeConfig(systemRole)
	if path := getInputFile(); path != "" {
		if err := cli.LoadRequest(path, config); err != nil {
			return nil, err
		}
		if systemRole != "" {
			config.Dialog.SystemRole = systemRole
		}
	}
	if cliCtx.Speaker != "" {
		config.TTS.Speaker = cliCtx.Speaker
	}
	return config, nil
}

// sendAudioChunked streams a raw PCM file at real-time pace.
func sendAudioChunked(ctx context.Context, path string, send func([]byte) error) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	ticker := time.NewTicker(audioChunkInterval)
	defer ticker.Stop()

	total := 0
	buf := make([]byte, audioChunkSize)
	for {
		n, err := io.ReadFull(f, buf)
		if n > 0 {
			if err := send(buf[:n]); err != nil {
				return total, fmt.Errorf("send audio: %w", err)
			}
			total += n
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return total, nil
		}
		if err != nil {
			return total, fmt.Errorf("read audio: %w", err)
		}

		select {
		case <-ctx.Done():
			return total, ctx.Err()
		case <-ticker.C:
		}
	}
}
