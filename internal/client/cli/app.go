package cli

import (
	"bufio"
	"context"
	"database/sql"
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/reelproof/reelproof/internal/client/api"
	"github.com/reelproof/reelproof/internal/client/config"
	"github.com/reelproof/reelproof/internal/client/resume"
	"github.com/reelproof/reelproof/internal/client/transport"
	"github.com/reelproof/reelproof/internal/client/uploader"
	"github.com/reelproof/reelproof/internal/common"
	"github.com/reelproof/reelproof/internal/logging"
)

// App wires the REST client, the resume store, the chunked transport and the
// upload queue manager behind an interactive command loop.
type App struct {
	config  *config.Config
	api     *api.Client
	manager *uploader.Manager
	db      *sql.DB
	reader  *bufio.Reader
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	db, resumeRepo, err := resume.Open(ctx, c.ResumeDBPath)
	if err != nil {
		log.Printf("error initializing resume database: %s", err.Error())
		return nil, err
	}

	apiClient := api.NewClient(c.ServerEndpointURL, http.DefaultClient)

	chunked := transport.NewClient(transport.Config{
		ChunkSize:   c.ChunkSizeBytes,
		RetryDelays: c.RetryDelays,
		OnBeforeRequest: func(req *http.Request) {
			req.Header.Set(common.AuthorizationHeaderName, "Bearer "+apiClient.AccessToken())
		},
	})

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	store := uploader.NewStore()
	reconciler := uploader.NewReconciler(apiClient, resumeRepo, logger)
	manager := uploader.NewManager(uploader.Config{
		MaxConcurrent:       c.MaxConcurrent,
		SpeedSampleInterval: c.SpeedSampleInterval,
	}, store, reconciler, uploader.NewChunkedTransport(chunked), apiClient, logger)

	app := &App{
		config:  c,
		api:     apiClient,
		manager: manager,
		db:      db,
		reader:  bufio.NewReader(os.Stdin),
	}
	manager.OnComplete(func(t uploader.Task) {
		log.Printf("Upload finished: %s\n", t.Source.Name)
	})
	return app, nil
}

func (a *App) isLoggedIn() bool {
	return a.api.Authenticated()
}

func (a *App) Run(ctx context.Context) {
	a.manager.Start(ctx)
	defer a.Close()
	a.Root(ctx)
}

// Close stops the queue and releases the resume database. Paused and
// in-flight uploads keep their resume state for the next run.
func (a *App) Close() {
	a.manager.Stop()
	if a.db != nil {
		a.db.Close()
	}
}
