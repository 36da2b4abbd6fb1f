package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/any-hub/file-hub/internal/cache"
	"github.com/any-hub/file-hub/internal/config"
	"github.com/any-hub/file-hub/internal/delivery"
	"github.com/any-hub/file-hub/internal/logging"
	"github.com/any-hub/file-hub/internal/pathutil"
	"github.com/any-hub/file-hub/internal/server"
	"github.com/any-hub/file-hub/internal/server/routes"
	"github.com/any-hub/file-hub/internal/throttle"
	"github.com/any-hub/file-hub/internal/version"
)

// shutdownTimeout 为收到信号后等待进行中请求结束的上限。
const shutdownTimeout = 10 * time.Second

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
	showHelp    bool

	rootDir string
	port    int
	portSet bool
	bind    string
	bindSet bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	_ = godotenv.Load()

	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showHelp {
		return 0
	}
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	resolver, err := pathutil.NewResolver(cfg.Server.RootDir)
	if err != nil {
		fmt.Fprintf(stdErr, "根目录不可用: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["root"] = resolver.Root()
		fields["listen"] = cfg.ListenAddr()
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	// 启动顺序为“配置 → 根目录 → 内存缓存 → 限速工厂 → 交付引擎 → Fiber server”，
	// 所有请求共享同一份缓存与引擎实例。
	store, err := cache.New(cache.Options{
		Capacity:      cfg.Delivery.CacheCapacity,
		TTL:           cfg.Delivery.CacheTTL.DurationValue(),
		SizeThreshold: cfg.Delivery.CacheSizeThreshold,
	})
	if err != nil {
		fmt.Fprintf(stdErr, "初始化缓存失败: %v\n", err)
		return 1
	}
	defer store.Close()

	factory, err := throttle.NewFactory(cfg.Delivery.RateLimit, cfg.Delivery.BurstRatio, nil)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化限速失败: %v\n", err)
		return 1
	}

	engine, err := delivery.NewEngine(delivery.Options{
		Resolver: resolver,
		Cache:    store,
		Throttle: factory,
		Logger:   logger,
	})
	if err != nil {
		fmt.Fprintf(stdErr, "初始化交付引擎失败: %v\n", err)
		return 1
	}

	fields := logging.BaseFields("startup", opts.configPath)
	fields["root"] = resolver.Root()
	fields["listen"] = cfg.ListenAddr()
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	app, err := buildApp(cfg, engine, logger)
	if err != nil {
		fmt.Fprintf(stdErr, "构建 HTTP 服务失败: %v\n", err)
		return 1
	}

	printBanner(stdOut, cfg, time.Now())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := startHTTPServer(ctx, app, cfg.ListenAddr(), logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// loadConfig 读取配置并叠加 CLI 覆盖项（位置参数目录、--port、--bind）。
func loadConfig(opts cliOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.rootDir == "" && !opts.portSet && !opts.bindSet {
		return cfg, nil
	}
	if opts.rootDir != "" {
		cfg.Server.RootDir = opts.rootDir
	}
	if opts.portSet {
		cfg.Server.ListenPort = opts.port
	}
	if opts.bindSet {
		cfg.Server.BindAddress = opts.bind
	}
	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newRootCommand 定义 `file-hub [directory]` 命令；RunE 只负责收集参数，真正的启动逻辑在 run 中。
func newRootCommand(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "file-hub [directory]",
		Short:         "Serve a directory over HTTP with caching and per-connection rate limiting",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.rootDir = args[0]
			}
			opts.portSet = cmd.Flags().Changed("port")
			opts.bindSet = cmd.Flags().Changed("bind")
			return nil
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&opts.port, "port", "p", 8000, "监听端口（覆盖配置中的 ListenPort）")
	flags.StringVarP(&opts.bind, "bind", "b", "0.0.0.0", "监听地址（覆盖配置中的 BindAddress）")
	flags.StringVar(&opts.configPath, "config", "", "配置文件路径（默认 ./file-hub.toml，可被 FILE_HUB_CONFIG 覆盖）")
	flags.BoolVar(&opts.checkOnly, "check-config", false, "仅校验配置后退出")
	flags.BoolVar(&opts.showVersion, "version", false, "显示版本信息")
	return cmd
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	var opts cliOptions
	cmd := newRootCommand(&opts)
	cmd.SetArgs(args)
	cmd.SetOut(stdOut)
	cmd.SetErr(stdErr)

	if err := cmd.Execute(); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}
	if help, _ := cmd.Flags().GetBool("help"); help {
		return cliOptions{showHelp: true}, nil
	}

	if opts.configPath == "" {
		opts.configPath = os.Getenv("FILE_HUB_CONFIG")
	}
	return opts, nil
}

func buildApp(cfg *config.Config, engine *delivery.Engine, logger *logrus.Logger) (*fiber.App, error) {
	handler, err := server.NewDeliveryHandler(engine, logger)
	if err != nil {
		return nil, err
	}
	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Handler:    handler,
		EnableCORS: cfg.Server.EnableCORS,
	})
	if err != nil {
		return nil, err
	}
	routes.RegisterStatusRoutes(app, engine)
	return app, nil
}

// startHTTPServer 在 errgroup 中同时运行监听与信号等待；任一方退出都会触发优雅关闭。
func startHTTPServer(ctx context.Context, app *fiber.App, addr string, logger *logrus.Logger) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.WithFields(logrus.Fields{
			"action": "listen",
			"addr":   addr,
		}).Info("Fiber 服务启动")
		return app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.WithFields(logrus.Fields{
			"action":  "shutdown",
			"timeout": shutdownTimeout.String(),
		}).Info("Fiber 服务关闭")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	return g.Wait()
}
