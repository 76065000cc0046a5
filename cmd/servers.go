package cmd

import (
	"context"
	"fmt"

	"shieldvpn/internal/catalog"
	"shieldvpn/internal/presenter"

	"github.com/spf13/cobra"
)

var (
	serversFilter string
	serversSearch string

	serversCmd = &cobra.Command{
		Use:   "servers",
		Short: "list the server catalog",
		RunE:  listServers,
	}
)

func listServers(cmd *cobra.Command, _ []string) error {
	filter, err := catalog.ParseFilter(serversFilter)
	if err != nil {
		return err
	}

	app := startApp()
	defer app.Shutdown()

	ctx := context.Background()
	if err := app.Controller.WaitLoaded(ctx); err != nil {
		return err
	}
	snap := app.Controller.Snapshot()
	premium := app.Settings.LoadPremium(ctx)

	selected := ""
	if snap.SelectedServer != nil {
		selected = snap.SelectedServer.ID
	}

	servers := app.Catalog.Search(serversSearch, filter, snap.FavoriteServerIDs)
	if len(servers) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no servers match")
		return nil
	}
	for _, s := range servers {
		row := presenter.ServerRow(s, snap.IsFavorite(s.ID), s.ID == selected, app.Config.Application.ShowServerLoad)
		if s.IsPremium && !premium {
			row += " (locked)"
		}
		fmt.Fprintln(cmd.OutOrStdout(), row)
	}
	return nil
}

func init() {
	serversCmd.Flags().StringVar(&serversFilter, "filter", "all", "all, favorites or premium")
	serversCmd.Flags().StringVar(&serversSearch, "search", "", "match country or city")
	rootCmd.AddCommand(serversCmd)
}
