package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"kb-assistant-be/internal/dto"
	pktNats "kb-assistant-be/pkg/nats"
	"kb-assistant-be/pkg/store"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	injectUser      string
	injectMessageID string
	injectAudio     string
)

var injectCmd = &cobra.Command{
	Use:   "inject <text|voice> [text]",
	Short: "Publish an inbound chat message on NATS as an external transport would",
	Long: `Publish an inbound chat message on chat.inbound.<origin>.

  kbctl inject text "what are your opening hours?" --user 42
  kbctl inject voice --audio question.ogg --user 42

Reusing --message-id exercises duplicate suppression.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runInject,
}

func init() {
	injectCmd.Flags().StringVar(&injectUser, "user", "", "User id the message comes from")
	injectCmd.Flags().StringVar(&injectMessageID, "message-id", "", "Message id (random when empty)")
	injectCmd.Flags().StringVar(&injectAudio, "audio", "", "Audio file for voice messages")
	_ = injectCmd.MarkFlagRequired("user")
}

func runInject(cmd *cobra.Command, args []string) error {
	origin := store.Channel(args[0])
	if !origin.Valid() {
		return fmt.Errorf("origin must be text or voice, got %q", args[0])
	}

	msg := dto.InboundMessage{
		MessageId: injectMessageID,
		UserId:    injectUser,
	}
	if msg.MessageId == "" {
		msg.MessageId = uuid.NewString()
	}

	switch origin {
	case store.ChannelText:
		if len(args) < 2 || strings.TrimSpace(args[1]) == "" {
			return fmt.Errorf("text messages need the text as second argument")
		}
		msg.Text = args[1]
	case store.ChannelVoice:
		if injectAudio == "" {
			return fmt.Errorf("voice messages need --audio")
		}
		audio, err := os.ReadFile(injectAudio)
		if err != nil {
			return err
		}
		msg.Audio = audio
		msg.Format = strings.TrimPrefix(filepath.Ext(injectAudio), ".")
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	nc, js, err := pktNats.Connect(cfg.App.NatsURL)
	if err != nil {
		return err
	}
	defer nc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	subject := pktNats.InboundSubjectPrefix + string(origin)
	if err := pktNats.NewPublisher(js).PublishRaw(ctx, subject, msg.MessageId, payload); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "published %s on %s\n", msg.MessageId, subject)
	return nil
}
