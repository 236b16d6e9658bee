package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gitpulse/gitpulse-go/internal/models"
)

var (
	groupsScope string
	groupsLimit int
)

var groupsCmd = &cobra.Command{
	Use:   "groups <project-id>",
	Short: "List co-change groups for a project",
	Args:  cobra.ExactArgs(1),
	RunE:  runGroups,
}

func init() {
	groupsCmd.Flags().StringVar(&groupsScope, "scope", "file", "group scope: file or directory")
	groupsCmd.Flags().IntVar(&groupsLimit, "limit", 20, "maximum groups to print (0 = all)")
}

func runGroups(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	projectID := args[0]

	scope := models.Scope(groupsScope)
	if scope != models.ScopeFile && scope != models.ScopeDirectory {
		return fmt.Errorf("unknown scope %q (want file or directory)", groupsScope)
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	groups, err := store.ListGroups(ctx, projectID, scope)
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		fmt.Printf("No %s-scope co-change groups for %s. Run 'gitpulse index %s' first.\n",
			scope, projectID, projectID)
		return nil
	}

	if groupsLimit > 0 && len(groups) > groupsLimit {
		groups = groups[:groupsLimit]
	}

	for _, g := range groups {
		fmt.Printf("%3dx  last %s\n", g.Frequency, g.LastSeenAt.Format(time.DateOnly))
		for _, member := range models.MembersOf(g.GroupKey) {
			fmt.Printf("      %s\n", member)
		}

		stats, err := store.ListMemberStats(ctx, projectID, scope, g.GroupKey)
		if err != nil {
			return err
		}
		if len(stats) > 0 {
			parts := make([]string, 0, len(stats))
			for _, s := range stats {
				parts = append(parts, fmt.Sprintf("%s: %d lines", s.MemberPath, s.LOC))
			}
			fmt.Printf("      (%s)\n", strings.Join(parts, ", "))
		}
	}

	return nil
}
