package thrive

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/neurothrive/thrive/internal/auth"
	"github.com/spf13/cobra"
)

const loginTimeout = 5 * time.Minute

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Sign in to the CRM",
}

var authURLCmd = &cobra.Command{
	Use:   "url",
	Short: "Print the authorization URL to open in a browser",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnv(func(env *appEnv) error {
			u, err := env.auth.AuthorizationURL(uuid.NewString())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), u)
			return nil
		})
	},
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authorize in the browser and capture the redirect locally",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnv(func(env *appEnv) error {
			addr, path, err := auth.CallbackAddr(env.cfg.RedirectURI)
			if err != nil {
				return err
			}
			state := uuid.NewString()
			u, err := env.auth.AuthorizationURL(state)
			if err != nil {
				return err
			}
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen for oauth callback on %s: %w", addr, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Open this URL to sign in:\n\n  %s\n\nWaiting for the redirect on %s ...\n", u, env.cfg.RedirectURI)

			ctx, cancel := context.WithTimeout(cmdContext(cmd), loginTimeout)
			defer cancel()
			code, err := auth.NewCallbackServer(state, path).Serve(ctx, ln)
			if err != nil {
				return err
			}
			sess, err := env.auth.Authorize(ctx, code)
			if err != nil {
				return err
			}
			printSession(cmd, sess)
			return nil
		})
	},
}

var authExchangeCmd = &cobra.Command{
	Use:   "exchange <code>",
	Short: "Trade an authorization code for tokens",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnv(func(env *appEnv) error {
			sess, err := env.auth.Authorize(cmdContext(cmd), args[0])
			if err != nil {
				return err
			}
			printSession(cmd, sess)
			return nil
		})
	},
}

var authRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refresh the access token now",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnv(func(env *appEnv) error {
			sess, err := env.auth.Refresh(cmdContext(cmd))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Token refreshed; valid until %s\n", localStamp(sess.ExpiresAt()))
			return nil
		})
	},
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Revoke the token and forget the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnv(func(env *appEnv) error {
			env.auth.Logout(cmdContext(cmd))
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		})
	},
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sign-in state",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnv(func(env *appEnv) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "State: %s\n", env.auth.State())
			sess, ok, err := env.auth.Session()
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			fmt.Fprintf(out, "Instance: %s\n", sess.InstanceURL)
			fmt.Fprintf(out, "User: %s\n", sess.UserID)
			expiry := localStamp(sess.ExpiresAt())
			if sess.Expired(time.Now()) {
				expiry += " (expired; refreshed on next use)"
			}
			fmt.Fprintf(out, "Token expires: %s\n", expiry)
			return nil
		})
	},
}

func printSession(cmd *cobra.Command, sess auth.Session) {
	fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s on %s\n", sess.UserID, sess.InstanceURL)
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authURLCmd, authLoginCmd, authExchangeCmd, authRefreshCmd, authLogoutCmd, authStatusCmd)
}
