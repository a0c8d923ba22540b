// Command projectctl opens and saves projects in any registered storage
// provider from the terminal.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"projectstore/internal/auth"
	"projectstore/internal/cloud"
	"projectstore/internal/config"
	"projectstore/internal/download"
	"projectstore/internal/gdrive"
	"projectstore/internal/modal"
	"projectstore/internal/recent"
	"projectstore/internal/state"
	"projectstore/internal/storage"
	"projectstore/internal/stubs"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

// options are the persistent flags shared by every command.
type options struct {
	profilePath string
	provider    string
	verbose     bool

	// host answers modals; tests replace it.
	host modal.Host
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(&options{host: newStdioHost()}).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd(opts *options) *cobra.Command {
	root := &cobra.Command{
		Use:   "projectctl",
		Short: "Open and save projects in cloud storage, Google Drive and local downloads",
		Long: `projectctl talks to the same storage providers as the editor.

Projects are read from and written to JSON files. Providers that need an
answer from you (a project name, a Google sign-in code) ask on the terminal.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if opts.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
		},
	}

	root.PersistentFlags().StringVar(&opts.profilePath, "profile", config.DefaultProfilePath(), "path to the YAML profile")
	root.PersistentFlags().StringVarP(&opts.provider, "provider", "p", cloud.InternalName, "storage provider internal name")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose logging")

	root.AddCommand(
		newProvidersCmd(opts),
		newOpenCmd(opts),
		newPickCmd(opts),
		newSaveCmd(opts),
		newSaveAsCmd(opts),
		newPropertiesCmd(opts),
		newListCmd(opts),
		newResolveCmd(opts),
		newAutoSaveCmd(opts),
		newRecentCmd(opts),
	)
	return root
}

// env is everything a command needs, built from the profile.
type env struct {
	profile  *config.Profile
	registry *storage.Registry
	user     auth.User
	host     modal.Host
	recent   *recent.Store
	closers  []io.Closer
}

func newEnv(opts *options) (*env, error) {
	profile, err := config.LoadProfile(opts.profilePath)
	if err != nil {
		return nil, err
	}
	e := &env{profile: profile, host: opts.host}

	cache, err := state.NewBoltAutoSaveCache(profile.AutoSaveBoltPath)
	if err != nil {
		return nil, err
	}
	e.closers = append(e.closers, cache)

	e.recent, err = recent.NewStore(profile.RecentDBPath, config.RecentProjectsLimit)
	if err != nil {
		e.Close()
		return nil, err
	}
	e.closers = append(e.closers, e.recent)

	sink, err := download.NewDirSink(profile.DownloadDir, "")
	if err != nil {
		e.Close()
		return nil, err
	}

	var load gdrive.LoadFunc
	if profile.Google.ClientSecretsFile != "" {
		load = gdrive.LoadFromSecretsFile(profile.Google.ClientSecretsFile)
	}

	api := cloud.NewClientWithHTTP(profile.CloudAPIBaseURL, &http.Client{Timeout: config.CloudAPITimeout},
		rate.NewLimiter(rate.Limit(config.CloudAPIRatePerSecond), config.CloudAPIBurst))
	e.registry, err = storage.NewRegistry(
		cloud.NewStorageProvider(api, cloud.NewS3BlobStore(nil), cache, cloud.WithGraceWindow(config.AutoSaveGraceWindow)),
		gdrive.NewStorageProvider(gdrive.NewLoader(load), gdrive.InteractiveSignInFactory),
		stubs.NewDropboxProvider(),
		stubs.NewOneDriveProvider(),
		download.NewStorageProvider(sink),
	)
	if err != nil {
		e.Close()
		return nil, err
	}

	e.user = auth.Anonymous()
	if profile.ProfileID != "" && profile.Auth0.RefreshToken != "" {
		client := auth.NewAuth0Client(&auth.Auth0Config{
			Domain:   profile.Auth0.Domain,
			ClientID: profile.Auth0.ClientID,
		}, nil)
		e.user = auth.NewRefreshingUser(&auth.Profile{ID: profile.ProfileID, Email: profile.Email}, client, profile.Auth0.RefreshToken)
	}
	return e, nil
}

func (e *env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i].Close(); err != nil {
			slog.Warn("Failed to close", "error", err)
		}
	}
	e.closers = nil
}

func (e *env) operations(provider string) (storage.Operations, error) {
	return e.registry.Operations(provider, storage.Dependencies{User: e.user, Modal: e.host})
}

// remember records a recent project; failures only get logged. Autosaves
// are never recorded.
func (e *env) remember(ctx context.Context, provider string, fm storage.FileMetadata, name string) {
	profile := e.user.Profile()
	if profile == nil || strings.HasPrefix(fm.FileIdentifier, config.AutoSavePrefix) {
		return
	}
	err := e.recent.Add(ctx, recent.Entry{
		ProfileID:    profile.ID,
		ProviderName: provider,
		FileMetadata: fm,
		Name:         name,
	})
	if err != nil {
		slog.Warn("Failed to record recent project", "error", err)
	}
}

// withEnv wraps a command body with env setup and teardown.
func withEnv(opts *options, run func(cmd *cobra.Command, args []string, e *env) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(opts)
		if err != nil {
			return err
		}
		defer e.Close()
		return run(cmd, args, e)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
