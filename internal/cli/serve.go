package cli

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/guildforge/guildhall/internal/api"
	"github.com/guildforge/guildhall/internal/app/diplomacy"
	"github.com/guildforge/guildhall/internal/app/party"
	"github.com/guildforge/guildhall/internal/app/vault"
	"github.com/guildforge/guildhall/internal/domain"
	"github.com/guildforge/guildhall/internal/engine"
	"github.com/guildforge/guildhall/internal/infra/sqlite"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Bool("no-metrics", false, "Disable the /metrics endpoint")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the guildhall HTTP daemon",
	Long: `Start the HTTP API, the expiry sweep loop, and the Prometheus
metrics endpoint. The daemon owns the database exclusively while running.`,
	RunE: runServe,
}

// openAuthority grants every permission. The standalone daemon has no
// player roster; a host embedding the engine supplies its own authority.
type openAuthority struct{}

func (openAuthority) HasPermission(uuid.UUID, uuid.UUID, domain.PermissionKind) bool { return true }

// logSink writes notifications to the daemon log.
type logSink struct{}

func (logSink) Notify(guildID uuid.UUID, message string) {
	log.Printf("[notify] guild=%s %s", guildID, message)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	dbPath, err := cfg.DatabasePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return err
	}

	db, err := sqlite.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	log.Printf("[daemon] database %s", dbPath)

	warDuration, err := cfg.WarDuration()
	if err != nil {
		return err
	}
	partyTTL, err := cfg.PartyTTL()
	if err != nil {
		return err
	}
	converter, err := cfg.Converter()
	if err != nil {
		return err
	}

	clock := domain.ClockFunc(time.Now)
	diplo := diplomacy.New(diplomacy.Config{
		WarDuration:        warDuration,
		WarDeclarationCost: cfg.War.DeclarationCost,
	}, db, db, db, clock)
	parties := party.New(party.Config{DefaultTTL: partyTTL}, db, clock)
	vaults := vault.New(db, converter, clock)
	eng := engine.New(diplo, parties, vaults, openAuthority{}, logSink{}, clock)

	srv := api.NewServer(eng)
	if noMetrics, _ := cmd.Flags().GetBool("no-metrics"); !noMetrics {
		srv.EnableMetrics()
	}

	httpSrv := &http.Server{
		Addr:              cfg.API.Addr(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweepInterval, err := cfg.SweepInterval()
	if err != nil {
		return err
	}
	if sweepInterval > 0 {
		go sweepLoop(ctx, eng, sweepInterval)
	} else {
		log.Printf("[daemon] sweep loop disabled")
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[daemon] listening on %s", httpSrv.Addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Printf("[daemon] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// sweepLoop periodically expires lapsed wars and parties until ctx is done.
func sweepLoop(ctx context.Context, eng *engine.Engine, interval time.Duration) {
	log.Printf("[daemon] sweep loop every %s", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := eng.Clock().Now()
			if n, err := eng.SweepWars(now); err != nil {
				log.Printf("[daemon] war sweep: %v", err)
			} else if n > 0 {
				log.Printf("[daemon] war sweep expired %d", n)
			}
			if n, err := eng.SweepParties(now); err != nil {
				log.Printf("[daemon] party sweep: %v", err)
			} else if n > 0 {
				log.Printf("[daemon] party sweep expired %d", n)
			}
		}
	}
}
