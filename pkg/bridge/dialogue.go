package bridge

import (
	"context"
	"iter"

	"github.com/ultralan/HakiMeet/pkg/doubaospeech"
)

// Dialogue is the part of a realtime session the bridge drives.
// *doubaospeech.RealtimeSession implements it.
type Dialogue interface {
	SendAudio(ctx context.Context, pcm []byte) error
	SendContext(ctx context.Context, text string) error
	SayHello(ctx context.Context, text string) error
	Events() iter.Seq2[*doubaospeech.RealtimeEvent, error]
	Close() error
}

// Dialer opens one Dialogue per client connection.
type Dialer interface {
	Dial(ctx context.Context, config *doubaospeech.RealtimeConfig) (Dialogue, error)
}

// RealtimeDialer dials the Doubao realtime dialogue service.
type RealtimeDialer struct {
	Client *doubaospeech.Client
}

func (d RealtimeDialer) Dial(ctx context.Context, config *doubaospeech.RealtimeConfig) (Dialogue, error) {
	session, err := d.Client.Realtime.Connect(ctx, config)
	if err != nil {
		return nil, err
	}
	return session, nil
}

var _ Dialogue = (*doubaospeech.RealtimeSession)(nil)
