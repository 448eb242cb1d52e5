package commands

import (
	"context"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"pairchat/internal/app"
	"pairchat/internal/domain"
)

func contactsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contacts",
		Short: "Manage your contact list",
	}
	cmd.AddCommand(contactsAddCmd(), contactsAcceptCmd(), contactsBlockCmd(), contactsHideCmd(), contactsListCmd())
	return cmd
}

func contactsAddCmd() *cobra.Command {
	var alias string
	cmd := &cobra.Command{
		Use:   "add <identity|alias>",
		Short: "Add a contact; it is accepted once both sides have added each other",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			acct, err := unlock()
			if err != nil {
				return err
			}
			peer, err := acct.Lookup(args[0])
			if err != nil {
				return err
			}
			if alias != "" {
				if err := wire.Aliases.SaveAlias(alias, peer); err != nil {
					return err
				}
			}
			return oneShot(cmd, func(ctx context.Context) error {
				if err := acct.Contacts.Add(ctx, peer); err != nil {
					return err
				}
				entry, _, err := acct.Contacts.Entry(ctx, peer)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", displayName(peer, nil), entry.State)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&alias, "alias", "", "local name for the contact")
	return cmd
}

// contactAction builds a subcommand applying op to one contact.
func contactAction(use, short, done string, op func(ctx context.Context, acct *app.Account, peer domain.Identity) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <identity|alias>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			acct, err := unlock()
			if err != nil {
				return err
			}
			peer, err := acct.Lookup(args[0])
			if err != nil {
				return err
			}
			return oneShot(cmd, func(ctx context.Context) error {
				if err := op(ctx, acct, peer); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", displayName(peer, nil), done)
				return nil
			})
		},
	}
}

func contactsAcceptCmd() *cobra.Command {
	return contactAction("accept", "Accept a pending contact", "accepted",
		func(ctx context.Context, acct *app.Account, peer domain.Identity) error {
			return acct.Contacts.Accept(ctx, peer)
		})
}

func contactsBlockCmd() *cobra.Command {
	return contactAction("block", "Block a contact", "blocked",
		func(ctx context.Context, acct *app.Account, peer domain.Identity) error {
			return acct.Contacts.Block(ctx, peer)
		})
}

func contactsHideCmd() *cobra.Command {
	var unhide bool
	cmd := contactAction("hide", "Hide a contact from presence", "updated",
		func(ctx context.Context, acct *app.Account, peer domain.Identity) error {
			return acct.Contacts.Hide(ctx, peer, !unhide)
		})
	cmd.Flags().BoolVar(&unhide, "undo", false, "unhide instead")
	return cmd
}

func contactsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your contacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			acct, err := unlock()
			if err != nil {
				return err
			}
			names, err := aliasNames()
			if err != nil {
				return err
			}
			return oneShot(cmd, func(ctx context.Context) error {
				entries, err := acct.Contacts.List(ctx)
				if err != nil {
					return err
				}
				if len(entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No contacts yet.")
					return nil
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "NAME\tSTATE\tHIDDEN\tIDENTITY")
				for _, e := range entries {
					fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", displayName(e.Contact, names), e.State, e.Hidden, e.Contact)
				}
				return tw.Flush()
			})
		},
	}
}

// aliasNames inverts the alias book.
func aliasNames() (map[domain.Identity]string, error) {
	aliases, err := wire.Aliases.ListAliases()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(aliases))
	for name := range aliases {
		keys = append(keys, name)
	}
	sort.Strings(keys)
	names := make(map[domain.Identity]string, len(aliases))
	for _, name := range keys {
		if _, ok := names[aliases[name]]; !ok {
			names[aliases[name]] = name
		}
	}
	return names, nil
}

// displayName prefers an alias, then the short identity. A nil names map is
// loaded from the alias book.
func displayName(id domain.Identity, names map[domain.Identity]string) string {
	if names == nil {
		names, _ = aliasNames()
	}
	if name, ok := names[id]; ok {
		return name
	}
	return id.Short()
}
