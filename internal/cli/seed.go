package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eldersfive/mediator/internal/config"
	"github.com/eldersfive/mediator/internal/model"
	"github.com/eldersfive/mediator/internal/store"
)

var (
	seedTitle    string
	seedProfiles []string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create a room and participant profiles for local testing",
	Example: `  mediator seed --profile u-alice=Alice --profile u-bob=Bob
  mediator seed --title "Direct Chat"`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringVar(&seedTitle, "title", "New Conversation", "room title")
	seedCmd.Flags().StringArrayVar(&seedProfiles, "profile", nil, "participant as user-id=Display Name (repeatable)")
}

func runSeed(cmd *cobra.Command, args []string) error {
	profiles, err := parseProfiles(seedProfiles)
	if err != nil {
		return err
	}

	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("%w: DATABASE_URL", config.ErrMissingConfig)
	}

	ctx := cmd.Context()
	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	if m, ok := db.(migrator); ok {
		if err := m.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	for i := range profiles {
		if err := db.UpsertProfile(ctx, &profiles[i]); err != nil {
			return err
		}
	}

	conv := &model.Conversation{Title: seedTitle}
	if err := db.CreateConversation(ctx, conv); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "conversation %s (%q)\n", conv.ID, conv.Title)
	for _, p := range profiles {
		fmt.Fprintf(cmd.OutOrStdout(), "profile %s (%s)\n", p.UserID, p.DisplayName)
	}
	return nil
}

func parseProfiles(values []string) ([]model.Profile, error) {
	profiles := make([]model.Profile, 0, len(values))
	for _, v := range values {
		id, name, ok := strings.Cut(v, "=")
		id, name = strings.TrimSpace(id), strings.TrimSpace(name)
		if !ok || id == "" || name == "" {
			return nil, fmt.Errorf("invalid --profile %q, want user-id=Display Name", v)
		}
		profiles = append(profiles, model.Profile{UserID: id, DisplayName: name})
	}
	return profiles, nil
}
