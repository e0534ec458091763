package cmd

import (
	"fmt"

	"github.com/Daskott/rolodex/colors"
	"github.com/Daskott/rolodex/shared"
	"github.com/spf13/cobra"
)

func createRegisterCmd() *cobra.Command {
	var email, password, name string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a rolodex account and log in",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}

			user, _, err := app.sessions.Register(cmd.Context(), email, password, name)
			if err != nil {
				return formattedError("%v", shared.Message(err))
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Welcome %s! You are logged in as %s\n", colors.Green(user.Name), user.Email)
			return nil
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "email address")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (at least 8 characters, no spaces)")
	cmd.Flags().StringVarP(&name, "name", "n", "", "your name")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")
	cmd.MarkFlagRequired("name")

	return cmd
}

func createLoginCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to your rolodex account",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}

			user, _, err := app.sessions.Login(cmd.Context(), email, password)
			if err != nil {
				return formattedError("%v", shared.Message(err))
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", colors.Green(user.Email))
			return nil
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "email address")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")

	return cmd
}

func createLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out and forget the saved session",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}

			if err := app.sessions.Logout(cmd.Context()); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s %v\n", warningLabel, shared.Message(err))
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func createWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}

			user, err := app.requireUser()
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s <%s>\n", colors.Green(user.Name), user.Email)
			return nil
		},
	}
}

// createAuthCmd groups the commands used to sign another device in.
func createAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Sign in on another device with a login link",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "begin",
		Short: "Start a login on this device and print the code challenge to authorize",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}

			challenge, err := app.sessions.BeginLogin()
			if err != nil {
				return formattedError("%v", shared.Message(err))
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Code challenge: %s\n", colors.Blue(challenge))
			fmt.Fprintln(cmd.OutOrStdout(), "Run 'rolodex auth link --challenge <code challenge>' on a logged in device")
			return nil
		},
	})

	var redirect, challenge string
	linkCmd := &cobra.Command{
		Use:   "link",
		Short: "Create a login link for another device",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			if _, err := app.requireUser(); err != nil {
				return err
			}

			link, err := app.sessions.LoginLink(cmd.Context(), redirect, challenge)
			if err != nil {
				return formattedError("%v", shared.Message(err))
			}

			fmt.Fprintln(cmd.OutOrStdout(), link)
			return nil
		},
	}
	linkCmd.Flags().StringVar(&redirect, "redirect", "rolodex://login", "where the link sends the other device")
	linkCmd.Flags().StringVar(&challenge, "challenge", "", "code challenge printed by 'rolodex auth begin'")
	cmd.AddCommand(linkCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "recover <url>",
		Short: "Log in with a login link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}

			recovered, err := app.sessions.RecoverFromURL(cmd.Context(), args[0])
			if err != nil {
				return formattedError("%v", shared.Message(err))
			}
			if !recovered {
				return formattedError("no session found in the link")
			}

			user := app.sessions.CurrentUser()
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", colors.Green(user.Email))
			return nil
		},
	})

	return cmd
}
