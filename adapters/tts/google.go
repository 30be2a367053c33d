package tts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/google/uuid"
	"github.com/googleapis/gax-go/v2"
	"go.uber.org/zap"

	"github.com/Design-Arena-Gens/agentic-4bf6c79a/utils/log"
)

const DefaultLanguage = "en-US"

type synthesizer interface {
	SynthesizeSpeech(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest, opts ...gax.CallOption) (*texttospeechpb.SynthesizeSpeechResponse, error)
}

// GoogleTTS renders complete assistant replies to MP3 files in outDir.
type GoogleTTS struct {
	client   synthesizer
	closer   func() error
	language string
	outDir   string
}

func NewGoogleTTS(ctx context.Context, language, outDir string) (*GoogleTTS, error) {
	client, err := texttospeech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating Google tts client: %w", err)
	}
	g := newGoogleTTS(client, language, outDir)
	g.closer = client.Close
	return g, nil
}

func newGoogleTTS(client synthesizer, language, outDir string) *GoogleTTS {
	if strings.TrimSpace(language) == "" {
		language = DefaultLanguage
	}
	if strings.TrimSpace(outDir) == "" {
		outDir = os.TempDir()
	}
	return &GoogleTTS{client: client, language: language, outDir: outDir}
}

func (g *GoogleTTS) Synthesize(ctx context.Context, text string) ([]byte, error) {
	req := texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{
				Text: text,
			},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: g.language,
			SsmlGender:   texttospeechpb.SsmlVoiceGender_NEUTRAL,
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding: texttospeechpb.AudioEncoding_MP3,
		},
	}
	resp, err := g.client.SynthesizeSpeech(ctx, &req)
	if err != nil {
		return nil, fmt.Errorf("synthesizing speech: %w", err)
	}

	return resp.GetAudioContent(), nil
}

// Speak synthesizes text as one unit and stores the audio in the output directory.
func (g *GoogleTTS) Speak(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	audio, err := g.Synthesize(ctx, text)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(g.outDir, 0o755); err != nil {
		return fmt.Errorf("creating audio directory: %w", err)
	}
	path := filepath.Join(g.outDir, uuid.NewString()+".mp3")
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		return fmt.Errorf("writing audio file: %w", err)
	}

	log.WithCtx(ctx).Info("speech synthesized", zap.String("file", path), zap.Int("bytes", len(audio)))
	return nil
}

func (g *GoogleTTS) Close() error {
	if g.closer == nil {
		return nil
	}
	return g.closer()
}
