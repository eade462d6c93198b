package cli

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/dkravcenko/plotkeeper/internal/client/client"
	"github.com/dkravcenko/plotkeeper/internal/client/config"
	"github.com/dkravcenko/plotkeeper/internal/client/services"
	"github.com/dkravcenko/plotkeeper/internal/logging"
)

type App struct {
	config *config.Config
	repos  *client.Repositories
	logger logging.Logger

	monitor     *services.ConnectivityMonitor
	records     *services.RecordService
	sync        *services.SyncService
	attachments *services.AttachmentService

	reader *bufio.Reader
}

func NewApp(c *config.Config) (*App, error) {
	ctx := context.Background()

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	repos, err := client.InitDatabase(ctx, c.DatabasePath, c.Tables)
	if err != nil {
		return nil, fmt.Errorf("initializing database: %w", err)
	}

	httpClient := &http.Client{Timeout: c.RequestTimeout}
	remote := client.NewHTTPRemote(c.ServerBaseURL, httpClient)

	monitor := services.NewConnectivityMonitor(remote, logger, c.OnlineCheckInterval)

	return &App{
		config:      c,
		repos:       repos,
		logger:      logger,
		monitor:     monitor,
		records:     services.NewRecordService(repos, logger),
		sync:        services.NewSyncService(repos, remote, monitor, logger, c.MaxRetries, c.SyncInterval),
		attachments: services.NewAttachmentService(repos, httpClient, logger, c.MaxCachedBlobs),
		reader:      bufio.NewReader(os.Stdin),
	}, nil
}

// Run starts the connectivity watcher and the background sync loop, then
// hands the terminal over to the REPL. It blocks until the user exits.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer a.repos.Close()

	go a.monitor.Run(ctx)
	go a.sync.Run(ctx)

	fmt.Println("PlotKeeper CLI (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, bufio.NewScanner(os.Stdin))
}

func (a *App) getStatus() string {
	mode := "offline"
	if a.monitor.IsOnline() {
		mode = "online"
	}
	n, err := a.repos.Mutations.Len(context.Background())
	if err != nil {
		return fmt.Sprintf("(%s)", mode)
	}
	return fmt.Sprintf("(%s, %d queued)", mode, n)
}
