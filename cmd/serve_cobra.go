package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tonk-labs/tonk/internal/adapters/bundle"
	"github.com/tonk-labs/tonk/internal/adapters/hostbridge"
	syncadapter "github.com/tonk-labs/tonk/internal/adapters/sync"
	"github.com/tonk-labs/tonk/internal/api"
	"github.com/tonk-labs/tonk/internal/core/entities"
	"github.com/tonk-labs/tonk/internal/core/usecases"
)

var (
	serveAddress string
	servePort    int
	serveSlug    string
	serveRelay   string
)

var serveCmd = &cobra.Command{
	Use:     "serve <bundle>",
	Aliases: []string{"s"},
	Short:   "Serve a Tonk bundle over HTTP",
	Long: `Load a .tonk bundle into the host bridge and serve it through the
same fetch-to-VFS translation a browser host uses (§4.6, §6.3), so
the bundle's web app can be previewed at http://<address>:<port>/.

Bundles are packed with plain virtual paths (e.g. /index.html); serve
rewrites them under /app/<slug>/ before loading, matching the
convention the fetch handler resolves requests against. --slug
defaults to the bundle's manifest name.`,
	GroupID: "serving",
	Args:    cobra.ExactArgs(1),
	Example: `  tonk serve app.tonk
  tonk serve app.tonk --port 3000 --address 0.0.0.0
  tonk serve app.tonk --relay wss://relay.example/sync`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddress, "address", "", "server address (default: serve.address from config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default: serve.port from config)")
	serveCmd.Flags().StringVar(&serveSlug, "slug", "", "app slug for fetch routing (default: manifest name)")
	serveCmd.Flags().StringVar(&serveRelay, "relay", "", "sync relay websocket URL (default: sync.relay_url from config)")

	_ = cfgLoader.Viper().BindPFlag("serve.address", serveCmd.Flags().Lookup("address"))
	_ = cfgLoader.Viper().BindPFlag("serve.port", serveCmd.Flags().Lookup("port"))
	_ = cfgLoader.Viper().BindPFlag("sync.relay_url", serveCmd.Flags().Lookup("relay"))
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read bundle: %w", err)
	}

	b, err := bundle.Parse(data, 0)
	if err != nil {
		return fmt.Errorf("failed to parse bundle: %w", err)
	}

	slug := serveSlug
	if slug == "" {
		slug = manifestSlug(b.Manifest())
	}
	rewritten, err := rewriteBundleUnderSlug(b, slug)
	if err != nil {
		return fmt.Errorf("failed to prepare bundle for serving: %w", err)
	}
	loadData, err := rewritten.ToBytes(bundle.ToBytesOptions{})
	if err != nil {
		return fmt.Errorf("failed to re-serialize bundle: %w", err)
	}

	relay := serveRelay
	if relay == "" {
		relay = cfg.Sync.RelayURL
	}

	var newTransport hostbridge.NewTransport
	if relay != "" {
		newTransport = func() usecases.SyncTransport { return syncadapter.New(logger) }
	}

	bridge := hostbridge.New(newTransport, logger)
	defer bridge.Close()
	setSlugResp := bridge.Handle(cmd.Context(), hostbridge.Request{
		Type:    "setAppSlug",
		Payload: map[string]any{"slug": slug},
	})
	if !setSlugResp.Success {
		return fmt.Errorf("failed to set app slug: %s", setSlugResp.Error)
	}

	loadPayload := map[string]any{"bundleBytes": loadData}
	if relay != "" {
		loadPayload["wsUrl"] = relay
	}
	loadResp := bridge.Handle(cmd.Context(), hostbridge.Request{Type: "loadBundle", Payload: loadPayload})
	if !loadResp.Success {
		return fmt.Errorf("failed to load bundle: %s", loadResp.Error)
	}
	bridge.Activate()

	address := serveAddress
	if address == "" {
		address = cfg.Serve.Address
	}
	port := servePort
	if port == 0 {
		port = cfg.Serve.Port
	}

	config := api.DefaultConfig()
	if address != "" {
		config.Address = address
	}
	if port != 0 {
		config.Port = port
	}

	server := api.NewServer(config, bridge, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("serving bundle", "slug", slug, "address", config.Address, "port", config.Port)
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func manifestSlug(m *entities.Manifest) string {
	if m == nil || m.Name == "" {
		return "app"
	}
	return strings.ToLower(strings.ReplaceAll(m.Name, " ", "-"))
}

// rewriteBundleUnderSlug clones b with every file path prefixed by
// /app/<slug>/, matching the convention hostbridge.ResolveFetchPath
// expects (§4.6). Entrypoints are carried over with the same prefix.
func rewriteBundleUnderSlug(b *bundle.Bundle, slug string) (*bundle.Bundle, error) {
	files := make(map[string][]byte, b.GetFileCount())
	for _, path := range b.ListFiles() {
		data, _ := b.GetFileData(path)
		files["/app/"+slug+path] = data
	}
	out, err := bundle.FromFiles(files, bundle.CreateOptions{Name: b.Manifest().Name})
	if err != nil {
		return nil, err
	}
	for name, path := range b.Manifest().Entrypoints {
		if err := out.SetEntrypoint(name, "/app/"+slug+path); err != nil {
			return nil, err
		}
	}
	return out, nil
}
