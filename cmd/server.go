package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/reiness/edos-jls-chatbot/internal/assistant"
	"github.com/reiness/edos-jls-chatbot/internal/lifecycle"
	"github.com/reiness/edos-jls-chatbot/internal/server"
)

var (
	serverPort  int
	serverWatch bool
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the HTTP question-answering server",
	Long: `Starts the REST API and websocket chat. Answers are recorded in the
history database. With --watch the index is rebuilt whenever ingestion
rewrites the chunk or embedding files.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port = serverPort
		}
		if cmd.Flags().Changed("watch") {
			cfg.Server.Watch = serverWatch
		}

		a, err := assistant.FromConfig(cfg)
		if err != nil {
			return err
		}
		hist, database, err := openHistory(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		passages := 0
		if ix, err := a.BuildOrLoadIndex(ctx, false); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: index unavailable: %v\n", err)
		} else {
			passages = ix.Len()
		}

		if cfg.Server.Watch {
			go func() {
				if err := a.Indexes().Watch(ctx, lifecycle.DefaultDebounce); err != nil {
					fmt.Fprintf(os.Stderr, "Warning: index watcher stopped: %v\n", err)
				}
			}()
		}

		srv := server.New(server.Config{
			Port:     cfg.Server.Port,
			AllowAll: cfg.Server.AllowAllOrigins,
		}, a, hist)

		go func() {
			<-ctx.Done()
			fmt.Fprintln(os.Stderr, "\nShutting down server...")
			srv.Shutdown(context.Background())
		}()

		fmt.Fprintf(os.Stderr, "sopbot server v%s starting on port %d\n", Version, cfg.Server.Port)
		fmt.Fprintf(os.Stderr, "  History: %s\n", database.Path())
		fmt.Fprintf(os.Stderr, "  Passages indexed: %d\n", passages)
		fmt.Fprintf(os.Stderr, "  Retrieval: %s\n", a.DefaultPolicy())

		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	serverCmd.Flags().IntVar(&serverPort, "port", 8080, "port to listen on")
	serverCmd.Flags().BoolVar(&serverWatch, "watch", false, "rebuild the index when ingestion output changes")
	rootCmd.AddCommand(serverCmd)
}
