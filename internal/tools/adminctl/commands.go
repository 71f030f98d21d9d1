package adminctl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/groceryplus/admin-console/internal/app"
	"github.com/groceryplus/admin-console/internal/domain"
	"github.com/groceryplus/admin-console/internal/http/client"
	"github.com/groceryplus/admin-console/internal/security"
	"github.com/groceryplus/admin-console/internal/service"
	"github.com/groceryplus/admin-console/internal/tools/common"
	"github.com/groceryplus/admin-console/internal/tools/loadgen"
)

var errLoginFailed = errors.New("login failed")

// present renders v as one JSON line, or as the given human readable lines.
func present(opts *options, v any, lines func() []string) ([]string, error) {
	if opts.asJSON {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode result: %w", err)
		}
		return []string{string(raw)}, nil
	}
	return lines(), nil
}

func newLoginCommand(opts *options) *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the admin backend and persist the session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				password = os.Getenv("ADMINCTL_PASSWORD")
			}
			if strings.TrimSpace(username) == "" || password == "" {
				return errors.New("--username and a password (--password or ADMINCTL_PASSWORD) are required")
			}
			return run(cmd, opts, "adminctl login", func(ctx context.Context, c *app.Console) ([]string, error) {
				if !c.Session.Login(ctx, username, password) {
					return nil, errLoginFailed
				}
				return sessionLines(c), nil
			})
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "admin username")
	cmd.Flags().StringVar(&password, "password", "", "admin password (prefer ADMINCTL_PASSWORD)")
	return cmd
}

func newLogoutCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the persisted session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts, "adminctl logout", func(ctx context.Context, c *app.Console) ([]string, error) {
				if err := c.Session.Logout(ctx); err != nil {
					return nil, err
				}
				return []string{"logged out"}, nil
			})
		},
	}
}

func newWhoamiCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the persisted session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts, "adminctl whoami", func(_ context.Context, c *app.Console) ([]string, error) {
				snap := c.Session.Store().Snapshot(time.Now())
				return present(opts, snap, func() []string { return sessionLines(c) })
			})
		},
	}
}

func sessionLines(c *app.Console) []string {
	snap := c.Session.Store().Snapshot(time.Now())
	if !snap.IsAuthenticated {
		return []string{"not logged in"}
	}
	lines := []string{
		"user=" + snap.UserDetails.DisplayName(),
		"role=" + snap.UserDetails.Role(),
		"token=" + security.Fingerprint(snap.Token),
	}
	if snap.SessionExpiry != nil {
		lines = append(lines, "expires="+snap.SessionExpiry.Format(time.RFC3339))
	}
	return lines
}

type listFlags struct {
	page     int
	pageSize int
	search   string
}

func (f *listFlags) bind(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.page, "page", 1, "page number")
	cmd.Flags().IntVar(&f.pageSize, "page-size", 10, "page size")
	cmd.Flags().StringVar(&f.search, "search", "", "search value")
}

func paginationLine(p *domain.Pagination) string {
	if p == nil {
		return ""
	}
	return fmt.Sprintf("page %d/%d (%d total)", p.Page, p.PageCount, p.Total)
}

func newProductsCommand(opts *options) *cobra.Command {
	var lf listFlags
	cmd := &cobra.Command{
		Use:   "products",
		Short: "List products",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts, "adminctl products", func(ctx context.Context, c *app.Console) ([]string, error) {
				res, err := c.Products.List(ctx, domain.ProductFilters{Page: lf.page, PageSize: lf.pageSize, SearchValue: lf.search})
				if err != nil {
					return nil, err
				}
				return present(opts, res, func() []string {
					lines := make([]string, 0, len(res.Data)+1)
					for _, p := range res.Data {
						lines = append(lines, fmt.Sprintf("#%d %s %s%.2f", p.ID, p.Name, p.CurrencySymbol, float64(p.BasePrice)))
					}
					return append(lines, paginationLine(res.Meta))
				})
			})
		},
	}
	lf.bind(cmd)
	cmd.AddCommand(newProductGetCommand(opts))
	return cmd
}

func newProductGetCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid product id %q", args[0])
			}
			return run(cmd, opts, "adminctl products get", func(ctx context.Context, c *app.Console) ([]string, error) {
				p, err := c.Products.Get(ctx, id)
				if err != nil {
					return nil, err
				}
				return present(opts, p, func() []string {
					return []string{fmt.Sprintf("#%d %s", p.ID, p.Name), "price=" + p.CurrencySymbol + strconv.FormatFloat(float64(p.BasePrice), 'f', 2, 64)}
				})
			})
		},
	}
}

func newCategoriesCommand(opts *options) *cobra.Command {
	var lf listFlags
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "List categories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts, "adminctl categories", func(ctx context.Context, c *app.Console) ([]string, error) {
				res, err := c.Categories.List(ctx, domain.CategoryFilters{Page: lf.page, PageSize: lf.pageSize, SearchValue: lf.search})
				if err != nil {
					return nil, err
				}
				return present(opts, res, func() []string {
					lines := make([]string, 0, len(res.Data)+1)
					for _, cat := range res.Data {
						lines = append(lines, fmt.Sprintf("#%d %s", cat.ID, cat.Name))
					}
					return append(lines, paginationLine(res.Meta))
				})
			})
		},
	}
	lf.bind(cmd)
	return cmd
}

func newBannersCommand(opts *options) *cobra.Command {
	var lf listFlags
	cmd := &cobra.Command{
		Use:   "banners",
		Short: "List CMS banners",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts, "adminctl banners", func(ctx context.Context, c *app.Console) ([]string, error) {
				res, err := c.Banners.List(ctx, domain.BannerFilters{Page: lf.page, PageSize: lf.pageSize})
				if err != nil {
					if client.IsAuthFailure(err) {
						return nil, fmt.Errorf("cms rejected its token, check CMS_TOKEN: %w", err)
					}
					return nil, err
				}
				return present(opts, res, func() []string {
					lines := make([]string, 0, len(res.Data)+1)
					for _, b := range res.Data {
						lines = append(lines, fmt.Sprintf("#%d %s active=%t", b.ID, b.Title, b.Active))
					}
					return append(lines, paginationLine(res.Meta))
				})
			})
		},
	}
	lf.bind(cmd)
	return cmd
}

func newOrdersCommand(opts *options) *cobra.Command {
	var lf listFlags
	var status string
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "List orders",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts, "adminctl orders", func(ctx context.Context, c *app.Console) ([]string, error) {
				res, err := c.Orders.List(ctx, domain.OrderFilters{Page: lf.page, PageSize: lf.pageSize, SearchValue: lf.search, Status: status})
				if err != nil {
					return nil, err
				}
				return present(opts, res, func() []string {
					lines := make([]string, 0, len(res.Data)+1)
					for _, o := range res.Data {
						lines = append(lines, fmt.Sprintf("#%d %s %s", o.ID, o.Name, o.CreatedAt))
					}
					return append(lines, paginationLine(res.Meta))
				})
			})
		},
	}
	lf.bind(cmd)
	cmd.Flags().StringVar(&status, "status", "", "order status filter")
	return cmd
}

func newDashboardCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show dashboard counters",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts, "adminctl dashboard", func(ctx context.Context, c *app.Console) ([]string, error) {
				d, err := c.Dashboard.Get(ctx)
				if err != nil {
					return nil, err
				}
				return present(opts, d, func() []string {
					raw, _ := json.MarshalIndent(d, "", "  ")
					return strings.Split(string(raw), "\n")
				})
			})
		},
	}
}

func newGalleryCommand(opts *options) *cobra.Command {
	var folder string
	var page int
	cmd := &cobra.Command{
		Use:   "gallery",
		Short: "List uploaded images",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts, "adminctl gallery", func(ctx context.Context, c *app.Console) ([]string, error) {
				res, err := c.Gallery.List(ctx, folder, page)
				if err != nil {
					return nil, err
				}
				return present(opts, res, func() []string {
					lines := make([]string, 0, len(res.Images)+1)
					for _, img := range res.Images {
						lines = append(lines, fmt.Sprintf("#%d %s thumb=%s", img.ID, img.URL, service.ThumbnailURL(img.URL)))
					}
					return append(lines, paginationLine(&res.Pagination))
				})
			})
		},
	}
	cmd.PersistentFlags().StringVar(&folder, "folder", "", "gallery folder")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.AddCommand(&cobra.Command{
		Use:   "upload <file>...",
		Short: "Upload images into a folder",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, "adminctl gallery upload", func(ctx context.Context, c *app.Console) ([]string, error) {
				files := make([]client.File, 0, len(args))
				for _, path := range args {
					f, err := os.Open(path)
					if err != nil {
						return nil, err
					}
					defer func() { _ = f.Close() }()
					files = append(files, client.File{Name: filepath.Base(path), Content: f})
				}
				urls, err := c.Gallery.Upload(ctx, folder, files)
				if err != nil {
					return nil, err
				}
				return present(opts, urls, func() []string { return urls })
			})
		},
	})
	return cmd
}

func newLoadgenCommand(opts *options) *cobra.Command {
	cfg := loadgen.Config{}
	cmd := &cobra.Command{
		Use:   "loadgen",
		Short: "Generate read traffic against a running gateway",
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := loadgen.Run(cmd.Context(), cfg)
			details := []string{fmt.Sprintf("total=%d failures=%d classes=%v", res.TotalRequests, res.Failures, res.StatusClasses)}
			if opts.ci {
				common.PrintCIResult(res.Failures == 0 && err == nil, "adminctl loadgen", details, err)
				return err
			}
			for _, d := range details {
				fmt.Fprintln(cmd.OutOrStdout(), d)
			}
			if err == nil && res.Failures > 0 {
				err = fmt.Errorf("%d requests failed", res.Failures)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&cfg.BaseURL, "base-url", "http://127.0.0.1:8088", "gateway base URL")
	cmd.Flags().StringVar(&cfg.Profile, "profile", "mixed", "traffic profile: mixed, catalog or session")
	cmd.Flags().DurationVar(&cfg.Duration, "duration", 10*time.Second, "how long to generate traffic")
	cmd.Flags().IntVar(&cfg.RPS, "rps", 10, "requests per second")
	cmd.Flags().IntVar(&cfg.Concurrency, "concurrency", 4, "concurrent workers")
	cmd.Flags().Uint64Var(&cfg.Seed, "seed", 42, "path selection seed")
	return cmd
}
