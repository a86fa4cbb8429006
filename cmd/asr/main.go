package main

import (
	"fmt"
	"os"
	"time"

	"github.com/cpqd/asr-sdk-go/pkg/asr"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	verbose    bool
	serverURL  string
	username   string
	password   string
	lmURI      string
	continuous bool
	maxWait    int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "asr",
		Short: "ASR SDK Go CLI",
		Long:  "A command-line interface for streaming speech recognition",
	}

	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&serverURL, "url", "", "ASR server websocket URL")
	rootCmd.PersistentFlags().StringVar(&username, "user", "", "Username for authentication")
	rootCmd.PersistentFlags().StringVar(&password, "password", "", "Password for authentication")

	rootCmd.AddCommand(recognizeCmd())
	rootCmd.AddCommand(micCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		asr.DefaultLogger().WithError(err).Error("command failed")
		os.Exit(1)
	}
}

func buildRecognizer(extra ...asr.RecognitionListener) (*asr.SpeechRecognizer, error) {
	cfg, err := asr.LoadConfig()
	if err != nil {
		return nil, err
	}
	if serverURL != "" {
		cfg.ServerURL = serverURL
	}
	if username != "" {
		cfg.Username = username
	}
	if password != "" {
		cfg.Password = password
	}
	if maxWait > 0 {
		cfg.MaxWaitSeconds = maxWait
	}
	if verbose {
		cfg.LogLevel = "debug"
		cfg.LogPretty = true
		asr.SetDefaultLogger(asr.NewLogger(&asr.LogConfig{Level: asr.DebugLevel, Pretty: true, Output: os.Stderr}))
	}

	builder := asr.NewRecognizerBuilderFromConfig(cfg)
	if continuous {
		builder.RecogConfig(&asr.RecognitionConfig{ContinuousMode: asr.Bool(true)})
	}
	for _, l := range extra {
		builder.AddListener(l)
	}
	return builder.Build()
}

func recognizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recognize [audio-file]",
		Short: "Recognize speech from an audio file",
		Long:  "Stream a raw audio file to the server and print the recognized text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := asr.NewFileAudioSource(args[0])
			if err != nil {
				return err
			}

			recognizer, err := buildRecognizer(partialPrinter())
			if err != nil {
				return err
			}
			defer recognizer.Close()

			start := time.Now()
			if err := recognizer.Recognize(source, []string{lmURI}); err != nil {
				return err
			}
			results, err := recognizer.WaitRecognitionResult()
			if err != nil {
				return err
			}

			printResults(results)
			if verbose {
				fmt.Printf("elapsed: %v\n", time.Since(start).Round(time.Millisecond))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&lmURI, "lm", "builtin:slm/general", "Language model URI")
	cmd.Flags().BoolVar(&continuous, "continuous", false, "Enable continuous mode")
	cmd.Flags().IntVar(&maxWait, "max-wait", 0, "Result wait timeout in seconds")
	return cmd
}

func micCmd() *cobra.Command {
	var duration float64

	cmd := &cobra.Command{
		Use:   "mic",
		Short: "Recognize speech from the microphone",
		Long:  "Capture audio from the default microphone and print the recognized text",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := asr.LoadConfig()
			if err != nil {
				return err
			}
			source, err := asr.NewMicAudioSource(cfg.SampleRate)
			if err != nil {
				return err
			}

			recognizer, err := buildRecognizer(partialPrinter())
			if err != nil {
				source.Close()
				return err
			}
			defer recognizer.Close()

			fmt.Printf("Listening for %.1f seconds...\n", duration)
			if err := recognizer.Recognize(source, []string{lmURI}); err != nil {
				return err
			}

			time.AfterFunc(time.Duration(duration*float64(time.Second)), func() {
				source.Finish()
			})

			results, err := recognizer.WaitRecognitionResult()
			if err != nil {
				return err
			}
			printResults(results)
			return nil
		},
	}

	cmd.Flags().Float64VarP(&duration, "duration", "d", 5.0, "Capture duration in seconds")
	cmd.Flags().StringVar(&lmURI, "lm", "builtin:slm/general", "Language model URI")
	cmd.Flags().BoolVar(&continuous, "continuous", false, "Enable continuous mode")
	return cmd
}

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		Long:  "Display the configuration resolved from environment variables and flags",
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()

			cfg, err := asr.LoadConfig()
			if err != nil {
				fmt.Printf("config error: %v\n", err)
				cfg = asr.DefaultConfig()
			}
			if serverURL != "" {
				cfg.ServerURL = serverURL
			}
			if username != "" {
				cfg.Username = username
			}

			fmt.Println("Current Configuration:")
			fmt.Printf("  Server URL: %s\n", cfg.ServerURL)
			fmt.Printf("  Username: %s\n", cfg.Username)
			fmt.Printf("  Password: %s\n", maskString(cfg.Password))
			fmt.Printf("  API Secret: %s\n", maskString(cfg.APISecret))
			fmt.Printf("  User Agent: %s\n", cfg.UserAgent)
			fmt.Printf("  Sample Rate: %d Hz\n", cfg.SampleRate)
			fmt.Printf("  Sample Size: %d bits\n", cfg.SampleSizeBits)
			fmt.Printf("  Chunk Length: %d ms\n", cfg.ChunkLengthMs)
			fmt.Printf("  Server RTF: %.2f\n", cfg.ServerRTF)
			fmt.Printf("  Max Wait: %d s\n", cfg.MaxWaitSeconds)
			fmt.Printf("  Connect On Recognize: %v\n", cfg.ConnectOnRecognize)
			fmt.Printf("  Auto Close: %v\n", cfg.AutoClose)
			fmt.Printf("  Max Session Idle: %d s\n", cfg.MaxSessionIdleSeconds)
			fmt.Printf("  Log Level: %s\n", cfg.LogLevel)
			return nil
		},
	}
}

func partialPrinter() asr.RecognitionListener {
	return &asr.ListenerFuncs{
		Listening: func() {
			if verbose {
				fmt.Println("server is listening")
			}
		},
		PartialResult: func(r *asr.PartialRecognitionResult) {
			fmt.Printf("partial [%d]: %s\n", r.SpeechSegmentIndex, r.Text)
		},
	}
}

func printResults(results []asr.RecognitionResult) {
	if len(results) == 0 {
		fmt.Println("no recognition result")
		return
	}
	for _, r := range results {
		if r.ResultStatus == asr.ResultStatusRecognized {
			fmt.Printf("[%d] %s\n", r.SegmentIndex, r.Text())
			if verbose {
				for i, alt := range r.Alternatives {
					fmt.Printf("    alt %d (score %.0f): %s\n", i, alt.Score, alt.Text)
				}
			}
		} else {
			fmt.Printf("[%d] no match (%s)\n", r.SegmentIndex, r.ResultStatus)
		}
	}
}

// Helper function to mask sensitive strings
func maskString(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}
