// Command transcribe is a standalone diagnostic CLI for the speech-to-text
// Model Host: given a model path and a WAV file, it runs the same
// modelhost.SpeechToText adapter the Pipeline's transcription stage uses,
// so an operator can sanity-check a whisper.cpp model file outside the
// ingest process.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"fennec/internal/config"
	"fennec/internal/modelhost"
)

func main() {
	var modelPath, language string
	var threads int
	flag.StringVar(&modelPath, "model", "", "path to the whisper.cpp ggml model file")
	flag.StringVar(&language, "language", "en", "language hint")
	flag.IntVar(&threads, "threads", 4, "decode thread count")
	flag.Parse()

	args := flag.Args()
	if modelPath == "" || len(args) < 1 {
		fmt.Fprintf(os.Stderr, "usage: %s -model <model_path> <wav_file>\n", os.Args[0])
		os.Exit(1)
	}
	audioPath := args[0]

	wavBytes, err := os.ReadFile(audioPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read audio: %v\n", err)
		os.Exit(1)
	}

	host := modelhost.NewSpeechToText(config.SpeechConfig{
		ModelPath: modelPath,
		Language:  language,
		Threads:   threads,
	})

	ctx := context.Background()
	if err := host.Load(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "load model: %v\n", err)
		os.Exit(1)
	}

	text, err := host.Transcribe(ctx, wavBytes)
	if err != nil {
		fmt.Fprintf(os.Stderr, "transcribe: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(text)
}
