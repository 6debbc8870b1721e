package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	accountingapp "github.com/erp/client/internal/application/accounting"
	authapp "github.com/erp/client/internal/application/auth"
	logisticsapp "github.com/erp/client/internal/application/logistics"
	partnerapp "github.com/erp/client/internal/application/partner"
	procurementapp "github.com/erp/client/internal/application/procurement"
	requisitionapp "github.com/erp/client/internal/application/requisition"
	warehouseapp "github.com/erp/client/internal/application/warehouse"
	"github.com/erp/client/internal/domain/shared"
	"github.com/erp/client/internal/domain/workflow"
	"github.com/erp/client/internal/infrastructure/config"
	"github.com/erp/client/internal/infrastructure/event"
	"github.com/erp/client/internal/infrastructure/logger"
	"github.com/erp/client/internal/infrastructure/realtime"
	"github.com/erp/client/internal/infrastructure/session"
	"github.com/erp/client/internal/infrastructure/transport"
	"go.uber.org/zap"
)

type app struct {
	cfg          *config.Config
	log          *zap.Logger
	bus          *event.InMemoryEventBus
	sessions     *session.Holder
	auth         *authapp.Manager
	requisitions *requisitionapp.Store
	procurement  *procurementapp.Store
	logistics    *logisticsapp.Store
	warehouse    *warehouseapp.Store
	accounting   *accountingapp.Store
	partners     *partnerapp.Store
	realtime     *realtime.Manager
}

func main() {
	var logLevel string
	flag.StringVar(&logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	a, err := newApp(cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize client", zap.Error(err))
	}

	ctx := context.Background()
	if err := a.run(ctx, args[0], args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func newApp(cfg *config.Config, log *zap.Logger) (*app, error) {
	bus := event.NewInMemoryEventBus(log)

	holder := session.NewHolder(session.NewFileStore(cfg.Auth.TokenStorePath))
	api := transport.NewClient(transport.Options{
		BaseURL:     cfg.API.BaseURL,
		RefreshPath: cfg.Auth.RefreshPath,
		Timeout:     cfg.API.Timeout,
	}, holder, bus, log)

	authMgr := authapp.NewManager(api, holder, bus, log)
	if err := authMgr.Restore(); err != nil {
		log.Warn("no stored session restored", zap.Error(err))
	}

	requisitions := requisitionapp.NewStore(api, holder, bus, requisitionapp.RetryConfig{
		MaxAttempts:  cfg.Retry.MaxAttempts,
		BaseDelay:    cfg.Retry.BaseDelay,
		PollAttempts: cfg.Retry.PollAttempts,
		PollInterval: cfg.Retry.PollInterval,
	}, log)

	a := &app{
		cfg:          cfg,
		log:          log,
		bus:          bus,
		sessions:     holder,
		auth:         authMgr,
		requisitions: requisitions,
		procurement:  procurementapp.NewStore(api, bus, log),
		logistics:    logisticsapp.NewStore(api, bus, log),
		warehouse:    warehouseapp.NewStore(api, bus, log),
		accounting:   accountingapp.NewStore(api, bus, log),
		partners:     partnerapp.NewStore(api, bus, log),
		realtime: realtime.NewManager(realtime.Options{
			URL:                  cfg.Realtime.URL,
			MaxReconnectAttempts: cfg.Realtime.MaxReconnectAttempts,
			ReconnectBaseDelay:   cfg.Realtime.ReconnectBaseDelay,
			HandshakeTimeout:     cfg.Realtime.HandshakeTimeout,
		}, holder, bus, log),
	}

	// Server pushes invalidate the requisition cache.
	bus.Subscribe(shared.NewHandler(func(ctx context.Context, evt shared.Event) error {
		id, _ := evt.Payload()["requisition_id"].(string)
		if id == "" {
			return nil
		}
		_, err := a.requisitions.RefreshWithRetry(ctx, id, 0)
		return err
	}, shared.EventRequisitionStatusChanged))

	// Surface notifications on the terminal.
	bus.Subscribe(shared.NewHandler(func(_ context.Context, evt shared.Event) error {
		message, _ := evt.Payload()["message"].(string)
		switch evt.EventType() {
		case shared.EventNotificationError:
			fmt.Fprintf(os.Stderr, "錯誤: %s\n", message)
		case shared.EventNotificationSuccess:
			fmt.Println(message)
		}
		return nil
	}, shared.EventNotificationError, shared.EventNotificationSuccess))

	return a, nil
}

func (a *app) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "login":
		return a.cmdLogin(ctx, args)
	case "logout":
		return a.auth.Logout(ctx)
	case "whoami":
		return a.cmdWhoami()
	case "requisitions":
		return a.cmdRequisitions(ctx, args)
	case "requisition":
		return a.cmdRequisitionDetail(ctx, args)
	case "po":
		return a.cmdPurchaseOrders(ctx)
	case "shipments":
		return a.cmdShipments(ctx)
	case "suppliers":
		return a.cmdSuppliers(ctx)
	case "billing-candidates":
		return a.cmdBillingCandidates(ctx)
	case "workflow":
		return a.cmdWorkflow()
	case "watch":
		return a.cmdWatch(ctx, args)
	default:
		printUsage()
		return fmt.Errorf("unknown command: %s", command)
	}
}

func (a *app) cmdLogin(ctx context.Context, args []string) error {
	reader := bufio.NewReader(os.Stdin)

	username := ""
	if len(args) > 0 {
		username = args[0]
	} else {
		fmt.Print("Username: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return err
		}
		username = strings.TrimSpace(line)
	}

	fmt.Print("Password: ")
	line, err := reader.ReadString('\n')
	if err != nil {
		return err
	}
	password := strings.TrimSpace(line)

	user, err := a.auth.Login(ctx, authapp.LoginInput{Username: username, Password: password})
	if err != nil {
		return err
	}
	fmt.Printf("Logged in as %s (%s)\n", user.ChineseName, user.Role)
	return nil
}

func (a *app) cmdWhoami() error {
	user, err := a.auth.CurrentUser()
	if err != nil {
		return err
	}
	fmt.Printf("%s  %s  %s/%s  role=%s\n", user.Username, user.ChineseName, user.Department, user.JobTitle, user.Role)
	return nil
}

func (a *app) cmdRequisitions(ctx context.Context, args []string) error {
	filters := requisitionapp.Filters{}
	if len(args) > 0 {
		filters.Status = args[0]
	}
	orders, err := a.requisitions.Fetch(ctx, &filters)
	if err != nil {
		return err
	}
	for _, order := range orders {
		urgent := ""
		if order.IsUrgent {
			urgent = " [急件]"
		}
		fmt.Printf("%s  %-10s  %s  %d 項%s\n",
			order.RequestOrderNo, order.OrderStatus, order.UsageType, len(order.Items), urgent)
	}
	p := a.requisitions.Pagination()
	if p.Pages > 1 {
		fmt.Printf("page %d/%d (%d total)\n", p.Page, p.Pages, p.Total)
	}
	return nil
}

func (a *app) cmdRequisitionDetail(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: erpctl requisition <request-order-no>")
	}
	order, err := a.requisitions.FetchDetail(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("%s  %s  %s\n", order.RequestOrderNo, order.OrderStatus, order.UsageType)
	for _, item := range order.Items {
		fmt.Printf("  #%d %-20s x%s  %s\n", item.DetailID, item.ItemName, item.ItemQuantity, item.ItemStatus)
	}
	return nil
}

func (a *app) cmdPurchaseOrders(ctx context.Context) error {
	orders, err := a.procurement.Fetch(ctx, nil)
	if err != nil {
		return err
	}
	for _, order := range orders {
		fmt.Printf("%s  %-16s  %-12s ship=%s bill=%s  %s\n",
			order.PurchaseOrderNo, order.SupplierName, order.PurchaseStatus,
			order.ShippingStatus, order.BillingStatus, order.GrandTotal)
	}
	return nil
}

func (a *app) cmdShipments(ctx context.Context) error {
	shipments, err := a.logistics.FetchShipments(ctx, logisticsapp.Filters{VisibleOnly: true})
	if err != nil {
		return err
	}
	for _, shipment := range shipments {
		fmt.Printf("%s  %-16s  %-18s eta=%s\n",
			shipment.PurchaseOrderNo, shipment.SupplierName, shipment.ShippingStatus, shipment.ETADate)
	}
	return nil
}

func (a *app) cmdSuppliers(ctx context.Context) error {
	suppliers, err := a.partners.Fetch(ctx, partnerapp.Filters{})
	if err != nil {
		return err
	}
	for _, supplier := range suppliers {
		state := "active"
		if !supplier.IsActive {
			state = "inactive"
		}
		fmt.Printf("%s  %-24s  %-13s  %s\n", supplier.SupplierID, supplier.NameZh, supplier.Region, state)
	}
	return nil
}

func (a *app) cmdBillingCandidates(ctx context.Context) error {
	candidates, err := a.accounting.FetchCandidates(ctx, accountingapp.CandidateFilters{})
	if err != nil {
		return err
	}
	for _, candidate := range candidates {
		fmt.Printf("%s  %-24s  %s\n", candidate.PurchaseOrderNo, candidate.SupplierName, candidate.GrandTotal)
	}
	fmt.Printf("合計: %s\n", a.accounting.TotalCandidateAmount())
	return nil
}

func (a *app) cmdWorkflow() error {
	for i, step := range workflow.Steps() {
		info, _ := step.Info()
		terminal := ""
		if step.IsTerminal() {
			terminal = " (terminal)"
		}
		fmt.Printf("%2d. %-14s %s → %s%s\n", i+1, step, info.Name, info.Status, terminal)
	}
	return nil
}

func (a *app) cmdWatch(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: erpctl watch <request-order-no>")
	}
	id := args[0]

	if err := a.realtime.Connect(ctx); err != nil {
		return err
	}
	defer a.realtime.Cleanup()

	if err := a.realtime.SubscribeRequisition(id); err != nil {
		return err
	}
	fmt.Printf("Watching %s, Ctrl-C to stop\n", id)

	a.bus.Subscribe(shared.NewHandler(func(_ context.Context, evt shared.Event) error {
		status, _ := evt.Payload()["order_status"].(string)
		fmt.Printf("%s → %s\n", id, status)
		return nil
	}, shared.EventRequisitionStatusChanged))

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	return nil
}

func printUsage() {
	fmt.Println(`ERP client CLI

Usage: erpctl [flags] <command> [args]

Commands:
  login [username]          Authenticate and store the session
  logout                    Clear the stored session
  whoami                    Show the current user
  requisitions [status]     List requisitions
  requisition <no>          Show one requisition
  po                        List purchase orders
  shipments                 List in-flight shipments
  suppliers                 List suppliers
  billing-candidates        List purchase orders awaiting billing
  workflow                  Show the procurement lifecycle steps
  watch <no>                Follow realtime status updates for a requisition

Flags:
  -log-level string         Log level override (debug, info, warn, error)`)
}
