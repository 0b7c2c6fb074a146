package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/and161185/health-diary/internal/model"
)

func (c *cli) memberCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "member",
		Aliases: []string{"members"},
		Short:   "Manage family members",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List family members",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if refresh, _ := cmd.Flags().GetBool("refresh"); refresh {
				if err := c.app.Family.Refresh(cmd.Context()); err != nil {
					return err
				}
			}
			printJSON(cmd.OutOrStdout(), c.app.Family.Members())
			return nil
		},
	}
	list.Flags().Bool("refresh", false, "reload from the backend first")

	add := &cobra.Command{
		Use:   "add",
		Short: "Add a family member",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := cmd.Flags()
			var d model.MemberDraft
			d.Name, _ = f.GetString("name")
			d.Age, _ = f.GetInt("age")
			d.Relation, _ = f.GetString("relation")
			d.Avatar, _ = f.GetString("avatar")
			m, err := c.app.Family.AddMember(cmd.Context(), d)
			if err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), m)
			return nil
		},
	}
	memberFlags(add)

	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a family member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			var p model.MemberPatch
			if f.Changed("name") {
				v, _ := f.GetString("name")
				p.Name = &v
			}
			if f.Changed("age") {
				v, _ := f.GetInt("age")
				p.Age = &v
			}
			if f.Changed("relation") {
				v, _ := f.GetString("relation")
				p.Relation = &v
			}
			if f.Changed("avatar") {
				v, _ := f.GetString("avatar")
				p.Avatar = &v
			}
			m, err := c.app.Family.UpdateMember(cmd.Context(), args[0], p)
			if err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), m)
			return nil
		},
	}
	memberFlags(update)

	rm := &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Remove a family member no entry refers to",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.RemoveMember(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}

	cmd.AddCommand(list, add, update, rm)
	return cmd
}

func memberFlags(cmd *cobra.Command) {
	cmd.Flags().String("name", "", "name")
	cmd.Flags().Int("age", 0, "age, 0..150")
	cmd.Flags().String("relation", "", "relation, e.g. mother")
	cmd.Flags().String("avatar", "", "avatar URL (derived from the name when empty)")
}
