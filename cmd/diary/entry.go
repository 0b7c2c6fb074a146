package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/and161185/health-diary/internal/model"
	"github.com/and161185/health-diary/internal/store"
)

func (c *cli) entryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "entry",
		Aliases: []string{"entries"},
		Short:   "Manage diary entries",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List diary entries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := cmd.Flags()
			if refresh, _ := f.GetBool("refresh"); refresh {
				if err := c.app.Entries.Refresh(cmd.Context()); err != nil {
					return err
				}
			}
			var flt store.Filter
			flt.Search, _ = f.GetString("search")
			flt.Date, _ = f.GetString("date")
			mood, _ := f.GetString("mood")
			flt.Mood = model.Mood(mood)
			flt.FamilyMemberID, _ = f.GetString("member")
			printJSON(cmd.OutOrStdout(), c.app.Entries.Filter(flt))
			return nil
		},
	}
	list.Flags().Bool("refresh", false, "reload from the backend first")
	list.Flags().String("search", "", "case-insensitive text in title or content")
	list.Flags().String("date", "", "exact date, YYYY-MM-DD")
	list.Flags().String("mood", "", "happy, neutral, sad, anxious or excited")
	list.Flags().String("member", "", "family member id")

	add := &cobra.Command{
		Use:   "add",
		Short: "Write a diary entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := cmd.Flags()
			var d model.EntryDraft
			d.Title, _ = f.GetString("title")
			d.Content, _ = f.GetString("content")
			d.Date, _ = f.GetString("date")
			mood, _ := f.GetString("mood")
			d.Mood = model.Mood(mood)
			d.Tags, _ = f.GetStringSlice("tag")
			d.FamilyMemberID, _ = f.GetString("member")
			if !f.Changed("date") {
				d.Date = time.Now().Format(model.DateLayout)
			}
			if !f.Changed("mood") {
				d.Mood = model.MoodNeutral
			}
			e, err := c.app.Entries.AddEntry(cmd.Context(), d)
			if err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), e)
			return nil
		},
	}
	entryFlags(add)
	add.Flags().Lookup("date").Usage = "date, YYYY-MM-DD (default today)"
	add.Flags().Lookup("mood").Usage = "happy, neutral, sad, anxious or excited (default neutral)"

	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a diary entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			var p model.EntryPatch
			p.Title = changedString(cmd, "title")
			p.Content = changedString(cmd, "content")
			p.Date = changedString(cmd, "date")
			p.FamilyMemberID = changedString(cmd, "member")
			if m := changedString(cmd, "mood"); m != nil {
				mood := model.Mood(*m)
				p.Mood = &mood
			}
			if f.Changed("tag") {
				tags, _ := f.GetStringSlice("tag")
				p.Tags = &tags
			}
			e, err := c.app.Entries.UpdateEntry(cmd.Context(), args[0], p)
			if err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), e)
			return nil
		},
	}
	entryFlags(update)

	rm := &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a diary entry",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.Entries.DeleteEntry(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}

	cmd.AddCommand(list, add, update, rm)
	return cmd
}

func entryFlags(cmd *cobra.Command) {
	cmd.Flags().String("title", "", "title")
	cmd.Flags().String("content", "", "text")
	cmd.Flags().String("date", "", "date, YYYY-MM-DD")
	cmd.Flags().String("mood", "", "happy, neutral, sad, anxious or excited")
	cmd.Flags().StringSlice("tag", nil, "tag (repeatable)")
	cmd.Flags().String("member", "", "family member id; empty unlinks on update")
}

// changedString returns the flag value only when it was set on the command line.
func changedString(cmd *cobra.Command, name string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetString(name)
	return &v
}
