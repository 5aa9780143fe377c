package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/smartlibrarian/ai/corpus"
	"github.com/hrygo/smartlibrarian/ai/observability/logging"
	"github.com/hrygo/smartlibrarian/internal/profile"
	"github.com/hrygo/smartlibrarian/internal/version"
	"github.com/hrygo/smartlibrarian/server"
	"github.com/hrygo/smartlibrarian/server/auth"
)

var (
	rootCmd = &cobra.Command{
		Use:   "smartlibrarian",
		Short: `A conversational book recommendation assistant grounded in a fixed corpus of book summaries.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Systemd units provide their environment explicitly.
			if !isRunningAsSystemdService() {
				_ = godotenv.Load()
			}
			return nil
		},
		Run: func(_ *cobra.Command, _ []string) {
			instanceProfile, err := loadProfile()
			if err != nil {
				fmt.Fprintln(os.Stderr, "invalid configuration:", err)
				os.Exit(1)
			}
			logging.Setup(instanceProfile.Mode, viper.GetBool("debug"))

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			storeInstance, err := openStore(ctx, instanceProfile)
			if err != nil {
				slog.Error("failed to open store", "error", err)
				return
			}
			defer storeInstance.Close()

			a, err := buildApp(ctx, instanceProfile, storeInstance)
			if err != nil {
				slog.Error("failed to build librarian", "error", err)
				return
			}

			// Best effort: the first turn is slower without these.
			go func() {
				warmupCtx, warmupCancel := context.WithTimeout(ctx, 10*time.Second)
				defer warmupCancel()
				a.llm.Warmup(warmupCtx)
			}()
			go func() {
				if _, err := a.indexer.Index(ctx, a.books); err != nil {
					slog.Warn("corpus indexing failed, retrieval may be incomplete", "error", err)
				}
			}()

			s, err := server.NewServer(ctx, instanceProfile, a.librarian, a.metrics)
			if err != nil {
				slog.Error("failed to create server", "error", err)
				return
			}

			c := make(chan os.Signal, 1)
			signal.Notify(c, terminationSignals...)

			if err := s.Start(ctx); err != nil {
				slog.Error("failed to start server", "error", err)
				return
			}
			printGreetings(instanceProfile, len(a.books))

			<-c
			s.Shutdown(ctx)
		},
	}

	indexCmd = &cobra.Command{
		Use:   "index",
		Short: "Embed the corpus and store the vectors used for retrieval",
		RunE: func(cmd *cobra.Command, _ []string) error {
			instanceProfile, err := loadProfile()
			if err != nil {
				return err
			}
			logging.Setup(instanceProfile.Mode, viper.GetBool("debug"))
			ctx := cmd.Context()

			books, err := corpus.LoadFile(instanceProfile.CorpusPath)
			if err != nil {
				return err
			}
			storeInstance, err := openStore(ctx, instanceProfile)
			if err != nil {
				return err
			}
			defer storeInstance.Close()

			embedder, err := newEmbeddingService(instanceProfile)
			if err != nil {
				return err
			}
			indexer := corpus.NewIndexer(embedder, storeInstance, corpus.IndexerConfig{
				BatchSize:         viper.GetInt("batch-size"),
				Concurrency:       viper.GetInt("concurrency"),
				RequestsPerSecond: viper.GetFloat64("rps"),
			})
			stats, err := indexer.Index(ctx, books)
			if err != nil {
				return err
			}
			fmt.Printf("Indexed %d books with %s: %d cached, %d embedded\n",
				len(books), embedder.Model(), stats.Cached, stats.Embedded)
			return nil
		},
	}

	tokenCmd = &cobra.Command{
		Use:   "token <owner>",
		Short: "Mint a development access token for owner",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			instanceProfile := &profile.Profile{}
			instanceProfile.FromEnv()
			if instanceProfile.JWTSecret == "" {
				return fmt.Errorf("SMARTLIB_JWT_SECRET is not set")
			}
			token, err := auth.GenerateAccessToken(args[0], []byte(instanceProfile.JWTSecret), viper.GetDuration("ttl"))
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
)

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("port", 8080)

	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 8080, "port of server")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "sqlite", "database driver (sqlite, postgres)")
	rootCmd.PersistentFlags().String("dsn", "", "database source name(aka. DSN)")
	rootCmd.PersistentFlags().String("corpus", "", "path to book_summaries.txt (default: <data>/book_summaries.txt)")
	rootCmd.PersistentFlags().String("prompt-dir", "", "directory holding librarian.yaml (default: built-in prompt)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	indexCmd.Flags().Int("batch-size", 16, "summaries per embeddings request")
	indexCmd.Flags().Int("concurrency", 2, "parallel embeddings requests")
	indexCmd.Flags().Float64("rps", 0, "max embeddings requests per second, 0 for unlimited")
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "token lifetime, 0 for no expiry")

	for _, name := range []string{"mode", "addr", "port", "data", "driver", "dsn", "corpus", "prompt-dir", "debug"} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(err)
		}
	}
	for _, name := range []string{"batch-size", "concurrency", "rps"} {
		if err := viper.BindPFlag(name, indexCmd.Flags().Lookup(name)); err != nil {
			panic(err)
		}
	}
	if err := viper.BindPFlag("ttl", tokenCmd.Flags().Lookup("ttl")); err != nil {
		panic(err)
	}

	viper.SetEnvPrefix("smartlib")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(indexCmd, tokenCmd)
}

func loadProfile() (*profile.Profile, error) {
	instanceProfile := &profile.Profile{
		Mode:       viper.GetString("mode"),
		Addr:       viper.GetString("addr"),
		Port:       viper.GetInt("port"),
		Data:       viper.GetString("data"),
		Driver:     viper.GetString("driver"),
		DSN:        viper.GetString("dsn"),
		CorpusPath: viper.GetString("corpus"),
		PromptDir:  viper.GetString("prompt-dir"),
		Version:    version.GetCurrentVersion(viper.GetString("mode")),
	}
	instanceProfile.FromEnv()
	if err := instanceProfile.Validate(); err != nil {
		return nil, err
	}
	return instanceProfile, nil
}

func printGreetings(profile *profile.Profile, books int) {
	fmt.Printf("Smart Librarian %s started successfully!\n", profile.Version)
	if profile.IsDev() {
		fmt.Fprint(os.Stderr, "Development mode is enabled\n")
		fmt.Fprintf(os.Stderr, "Database: %s\n", profile.DSN)
	}
	fmt.Printf("Data directory: %s\n", profile.Data)
	fmt.Printf("Database driver: %s\n", profile.Driver)
	fmt.Printf("Corpus: %s (%d books)\n", profile.CorpusPath, books)
	fmt.Printf("Mode: %s\n", profile.Mode)
	if len(profile.Addr) == 0 {
		fmt.Printf("Server running on port %d\n", profile.Port)
	} else {
		fmt.Printf("Server running on %s:%d\n", profile.Addr, profile.Port)
	}
}

// isRunningAsSystemdService detects if the process is running under systemd.
func isRunningAsSystemdService() bool {
	return os.Getenv("INVOCATION_ID") != "" || os.Getenv("WATCHDOG_USEC") != ""
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
