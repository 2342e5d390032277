package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/guildforge/guildhall/internal/app/diplomacy"
	"github.com/guildforge/guildhall/internal/app/party"
	"github.com/guildforge/guildhall/internal/app/vault"
	"github.com/guildforge/guildhall/internal/domain"
	"github.com/guildforge/guildhall/internal/engine"
	"github.com/guildforge/guildhall/internal/infra/sqlite"
)

// openStack builds an engine over the configured database for one-shot
// commands. The caller must Close the returned DB.
func openStack(cmd *cobra.Command) (*sqlite.DB, *engine.Engine, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	dbPath, err := cfg.DatabasePath()
	if err != nil {
		return nil, nil, err
	}
	db, err := sqlite.Open(dbPath)
	if err != nil {
		return nil, nil, err
	}

	warDuration, err := cfg.WarDuration()
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	partyTTL, err := cfg.PartyTTL()
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	converter, err := cfg.Converter()
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	clock := domain.ClockFunc(time.Now)
	diplo := diplomacy.New(diplomacy.Config{
		WarDuration:        warDuration,
		WarDeclarationCost: cfg.War.DeclarationCost,
	}, db, db, db, clock)
	parties := party.New(party.Config{DefaultTTL: partyTTL}, db, clock)
	vaults := vault.New(db, converter, clock)
	eng := engine.New(diplo, parties, vaults, openAuthority{}, logSink{}, clock)
	return db, eng, nil
}
