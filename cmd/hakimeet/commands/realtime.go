package commands

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ultralan/HakiMeet/pkg/cli"
	ds "github.com/ultralan/HakiMeet/pkg/doubaospeech"
)

var realtimeCmd = &cobra.Command{
	Use:   "realtime",
	Short: "Real-time voice dialogue service",
	Long: `End-to-end realtime voice dialogue with the interviewer.

Example config file (realtime.yaml):
  asr:
    extra:
      end_smooth_window_ms: 1500
  tts:
    speaker: zh_male_yunzhou_jupiter_bigtts
    audio_config:
      channel: 1
      format: pcm_s16le
      sample_rate: 24000
  dialog:
    bot_name: 面试官
    system_role: 你是一名资深后端面试官
    speaking_style: 你的说话风格专业严谨，语速适中，语调自然。`,
}

var realtimeConnectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Run one dialogue from the terminal",
	Long: `Connect to the realtime dialogue service, send a greeting or a PCM file,
and print transcripts as they complete.

Reply audio (24kHz s16le PCM) is written to -o, or with --save to
~/.hakimeet/hakimeet/recordings/<timestamp>.pcm.

The command exits when the server ends the session, when no event arrives
for --idle after the input was sent, or on --timeout.

Examples:
  # Greeting only
  hakimeet -c prod realtime connect -g "你好，我是今天的面试官。请先做一个简单的自我介绍吧。"

  # Answer from a recorded 16kHz PCM file
  hakimeet -c prod realtime connect -f realtime.yaml --audio answer.pcm -o reply.pcm`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cliCtx, err := getContext()
		if err != nil {
			return err
		}

		client, err := createClient(cliCtx)
		if err != nil {
			return err
		}

		systemRole, _ := cmd.Flags().GetString("system-role")
		config, err := loadRealtimeConfig(cliCtx, systemRole)
		if err != nil {
			return err
		}

		printVerbose("Using context: %s", cliCtx.Name)

		var opts realtimeConnectOptions
		opts.audioFile, _ = cmd.Flags().GetString("audio")
		opts.greeting, _ = cmd.Flags().GetString("greeting")
		opts.contexts, _ = cmd.Flags().GetStringArray("context")
		opts.idle, _ = cmd.Flags().GetDuration("idle")
		save, _ := cmd.Flags().GetBool("save")

		if opts.audioFile == "" && opts.greeting == "" {
			return fmt.Errorf("either --audio or --greeting/-g is required")
		}

		opts.outputPath = getOutputFile()
		if opts.outputPath == "" && save && globalPaths != nil {
			if err := globalPaths.EnsureRecordingsDir(); err != nil {
				return err
			}
			opts.outputPath = globalPaths.RecordingPath(time.Now())
		}

		timeout, _ := cmd.Flags().GetDuration("timeout")
		reqCtx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		return runRealtimeConnect(reqCtx, client, config, opts)
	},
}

type realtimeConnectOptions struct {
	audioFile  string
	greeting   string
	contexts   []string
	idle       time.Duration
	outputPath string
}

type transcriptLine struct {
	Speaker ds.Speaker `json:"speaker" yaml:"speaker"`
	Text    string     `json:"text" yaml:"text"`
}

type realtimeResult struct {
	SessionID   string           `json:"session_id" yaml:"session_id"`
	DialogID    string           `json:"dialog_id,omitempty" yaml:"dialog_id,omitempty"`
	Transcripts []transcriptLine `json:"transcripts" yaml:"transcripts"`
	AudioBytes  int              `json:"audio_bytes" yaml:"audio_bytes"`
	AudioLength string           `json:"audio_length" yaml:"audio_length"`
	Reconnects  uint64           `json:"reconnects" yaml:"reconnects"`
	Dropped     uint64           `json:"audio_frames_dropped" yaml:"audio_frames_dropped"`
}

// ============================================================================
// Implementation Functions
// ============================================================================

func runRealtimeConnect(ctx context.Context, client *ds.Client, config *ds.RealtimeConfig, opts realtimeConnectOptions) error {
	session, err := client.Realtime.Connect(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer session.Close()

	styles := cli.NewStyles(cli.DefaultTheme)
	cli.PrintSuccess("Connected to realtime service (session: %s)", session.SessionID())

	// The event loop runs beside the sender so transcripts print while audio
	// is still streaming.
	events := make(chan eventOrErr, 64)
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		defer close(events)
		for ev, err := range session.Events() {
			select {
			case events <- eventOrErr{ev, err}:
			case <-stop:
				return
			}
		}
	}()

	for _, text := range opts.contexts {
		if err := session.SendContext(ctx, text); err != nil {
			return fmt.Errorf("send context: %w", err)
		}
	}

	inputDone := make(chan error, 1)
	go func() {
		if opts.greeting != "" {
			printVerbose("Sending greeting: %s", opts.greeting)
			if err := session.SayHello(ctx, opts.greeting); err != nil {
				inputDone <- fmt.Errorf("send greeting: %w", err)
				return
			}
		}
		if opts.audioFile != "" {
			n, err := sendAudioChunked(ctx, opts.audioFile, func(chunk []byte) error {
				return session.SendAudio(ctx, chunk)
			})
			if err != nil {
				inputDone <- err
				return
			}
			printVerbose("Sent %s of audio", cli.FormatDuration(cli.PCMDuration(n, 16000)))
		}
		inputDone <- nil
	}()

	var (
		audioBuf    bytes.Buffer
		transcripts []transcriptLine
		idle        <-chan time.Time
	)

loop:
	for {
		select {
		case err := <-inputDone:
			if err != nil {
				return err
			}
			inputDone = nil
			idle = time.After(opts.idle)
		case <-idle:
			printVerbose("No events for %s, finishing", opts.idle)
			break loop
		case <-ctx.Done():
			break loop
		case item, ok := <-events:
			if !ok {
				break loop
			}
			if item.err != nil {
				return fmt.Errorf("dialogue failed: %w", item.err)
			}
			if inputDone == nil {
				idle = time.After(opts.idle)
			}

			ev := item.ev
			switch ev.Type {
			case ds.RealtimeEventAudio:
				audioBuf.Write(ev.Audio)
			case ds.RealtimeEventTranscript:
				transcripts = append(transcripts, transcriptLine{Speaker: ev.Speaker, Text: ev.Text})
				if !isJSONOutput() {
					fmt.Println(styles.Transcript(string(ev.Speaker), ev.Text))
				}
			case ds.RealtimeEventInterrupted:
				if !isJSONOutput() {
					fmt.Println(styles.StatusLine("interrupted"))
				}
			case ds.RealtimeEventError:
				if ev.Error != nil {
					fmt.Fprintln(os.Stderr, styles.Error.Render(ev.Error.Error()))
				}
			case ds.RealtimeEventSessionEnded:
				printVerbose("Session finished")
				break loop
			}
		}
	}

	if audioBuf.Len() > 0 && opts.outputPath != "" {
		if err := cli.OutputBytes(audioBuf.Bytes(), opts.outputPath); err != nil {
			return fmt.Errorf("write audio: %w", err)
		}
		cli.PrintSuccess("Audio saved to: %s (%s)", opts.outputPath, cli.FormatBytes(int64(audioBuf.Len())))
	}

	stats := session.Stats()
	if isJSONOutput() {
		result := realtimeResult{
			SessionID:   session.SessionID(),
			DialogID:    session.DialogID(),
			Transcripts: transcripts,
			AudioBytes:  audioBuf.Len(),
			AudioLength: cli.FormatDuration(cli.PCMDuration(audioBuf.Len(), 24000)),
			Reconnects:  stats.Reconnects,
			Dropped:     stats.AudioFramesDropped,
		}
		return outputResult(result, "", true)
	}

	if stats.Reconnects > 0 || stats.AudioFramesDropped > 0 {
		cli.PrintWarning("%d reconnect(s), %d audio frame(s) dropped", stats.Reconnects, stats.AudioFramesDropped)
	}
	return nil
}

type eventOrErr struct {
	ev  *ds.RealtimeEvent
	err error
}

func init() {
	realtimeConnectCmd.Flags().String("audio", "", "Audio file to send (16kHz s16le PCM)")
	realtimeConnectCmd.Flags().StringP("greeting", "g", "", "Text greeting spoken by the interviewer (SayHello)")
	realtimeConnectCmd.Flags().String("system-role", "", "System role (overrides the config file)")
	realtimeConnectCmd.Flags().StringArray("context", nil, "Reference text sent before the greeting (repeatable)")
	realtimeConnectCmd.Flags().Duration("idle", 5*time.Second, "Finish after this long without events once input is sent")
	realtimeConnectCmd.Flags().Duration("timeout", 120*time.Second, "Overall timeout")
	realtimeConnectCmd.Flags().Bool("save", false, "Save reply audio under ~/.hakimeet/hakimeet/recordings")

	realtimeCmd.AddCommand(realtimeConnectCmd)
}
