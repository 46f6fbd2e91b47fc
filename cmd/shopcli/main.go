// shopcli is a terminal storefront for the storefront API: browse the
// catalog, manage a local cart, check out and follow orders.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"storefront/config"
	"storefront/internal/cart"
	"storefront/internal/checkout"
	"storefront/internal/client"
	"storefront/internal/domain"
)

func usage() {
	fmt.Fprintf(os.Stderr, `shopcli - terminal storefront

Usage:
    shopcli <command> [options]

Commands:
    init                          seed the demo catalog
    products [-category c] [-featured true|false] [-search s]
    product <id>
    cart show | add <id> [-q n] | remove <id> | set <id> <n> | clear
    checkout -name n -email e -street s -city c -state st -zip z [-country USA]
    orders [-user id] [-status s]
    order <id>
    status <id> <processing|shipped|delivered|cancelled>

Environment:
    STOREFRONT_API_URL, STOREFRONT_CART_FILE, STOREFRONT_TIMEOUT
`)
}

type app struct {
	api  *client.Client
	cart *cart.Store
	log  *logrus.Logger
	out  io.Writer
}

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "notice: %s\n", client.UserMessage(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "help" {
		usage()
		return nil
	}

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.WarnLevel)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	cfg, err := config.LoadClient(logger)
	if err != nil {
		return err
	}
	a := &app{
		api:  client.New(cfg.APIURL, cfg.Timeout, logger),
		cart: cart.New(cart.NewFileStorage(cfg.CartFile), logger),
		log:  logger,
		out:  os.Stdout,
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "init":
		return a.initialize(ctx)
	case "products":
		return a.products(ctx, rest)
	case "product":
		return a.product(ctx, rest)
	case "cart":
		return a.cartCmd(ctx, rest)
	case "checkout":
		return a.checkout(ctx, rest)
	case "orders":
		return a.orders(ctx, rest)
	case "order":
		return a.order(ctx, rest)
	case "status":
		return a.status(ctx, rest)
	default:
		usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func needArgs(args []string, n int, what string) error {
	if len(args) < n {
		return fmt.Errorf("usage: shopcli %s", what)
	}
	return nil
}

func (a *app) initialize(ctx context.Context) error {
	res, err := a.api.Initialize(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s: %d products, %d users, %d orders\n",
		res.Message, res.Counts.Products, res.Counts.Users, res.Counts.Orders)
	return nil
}

func (a *app) products(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("products", flag.ContinueOnError)
	category := fs.String("category", "", "Only this category")
	featured := fs.String("featured", "", "Only featured (true) or non-featured (false) products")
	search := fs.String("search", "", "Search name and description")
	if err := fs.Parse(args); err != nil {
		return err
	}

	q := client.ProductQuery{Category: *category, Search: *search}
	if *featured != "" {
		want, err := strconv.ParseBool(*featured)
		if err != nil {
			return fmt.Errorf("-featured must be true or false, got %q", *featured)
		}
		q.Featured = &want
	}
	products, err := a.api.ListProducts(ctx, q)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tPRICE\tSTOCK\t")
	for _, p := range products {
		name := p.Name
		if p.Featured {
			name += " *"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%d\t\n", p.ID, name, p.Category, p.Price, p.Stock)
	}
	return w.Flush()
}

func (a *app) product(ctx context.Context, args []string) error {
	if err := needArgs(args, 1, "product <id>"); err != nil {
		return err
	}
	p, err := a.api.GetProduct(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s\n%s\n\nCategory: %s\nPrice:    %.2f\nStock:    %d\n",
		p.Name, p.Description, p.Category, p.Price, p.Stock)
	if q := a.cart.CartItemQuantity(p.ID); q > 0 {
		fmt.Fprintf(a.out, "In cart:  %d\n", q)
	}
	return nil
}

func (a *app) cartCmd(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return a.showCart()
	}
	switch args[0] {
	case "show":
		return a.showCart()
	case "add":
		fs := flag.NewFlagSet("cart add", flag.ContinueOnError)
		qty := fs.Int("q", 1, "Quantity to add")
		if err := needArgs(args[1:], 1, "cart add <id> [-q n]"); err != nil {
			return err
		}
		if err := fs.Parse(args[2:]); err != nil {
			return err
		}
		p, err := a.api.GetProduct(ctx, args[1])
		if err != nil {
			return err
		}
		if p.Stock < a.cart.CartItemQuantity(p.ID)+*qty {
			return fmt.Errorf("only %d of %s in stock", p.Stock, p.Name)
		}
		a.cart.AddToCart(cart.Item{ProductID: p.ID, Name: p.Name, Price: p.Price, ImageURL: p.ImageURL, Quantity: *qty})
		fmt.Fprintf(a.out, "Added %d x %s to cart\n", *qty, p.Name)
	case "remove":
		if err := needArgs(args[1:], 1, "cart remove <id>"); err != nil {
			return err
		}
		a.cart.RemoveFromCart(args[1])
	case "set":
		if err := needArgs(args[1:], 2, "cart set <id> <quantity>"); err != nil {
			return err
		}
		n, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("quantity must be a number: %w", err)
		}
		a.cart.UpdateQuantity(args[1], n)
	case "clear":
		a.cart.ClearCart()
	default:
		return fmt.Errorf("unknown cart command %q", args[0])
	}
	return a.showCart()
}

func (a *app) showCart() error {
	items := a.cart.Items()
	if len(items) == 0 {
		fmt.Fprintln(a.out, "Your cart is empty.")
		return nil
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tQTY\tPRICE\tLINE\t")
	for _, item := range items {
		fmt.Fprintf(w, "%s\t%s\t%d\t%.2f\t%.2f\t\n",
			item.ProductID, item.Name, item.Quantity, item.Price, domain.LineTotal(item.Price, item.Quantity))
	}
	fmt.Fprintf(w, "\t\t%d\t\t%.2f\t\n", a.cart.TotalItems(), a.cart.TotalPrice())
	return w.Flush()
}

func (a *app) checkout(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("checkout", flag.ContinueOnError)
	var form checkout.Form
	fs.StringVar(&form.Name, "name", "", "Full name")
	fs.StringVar(&form.Email, "email", "", "Email address")
	fs.StringVar(&form.Street, "street", "", "Street address")
	fs.StringVar(&form.City, "city", "", "City")
	fs.StringVar(&form.State, "state", "", "State")
	fs.StringVar(&form.ZipCode, "zip", "", "ZIP code")
	fs.StringVar(&form.Country, "country", "USA", "Country")
	key := fs.String("key", "", "Idempotency key (generated when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *key == "" {
		*key = uuid.NewString()
	}

	order, err := checkout.NewService(a.api, a.cart, a.log).PlaceOrder(ctx, form, *key)
	if err != nil {
		var fieldErrs checkout.FieldErrors
		if errors.As(err, &fieldErrs) {
			fields := make([]string, 0, len(fieldErrs))
			for field := range fieldErrs {
				fields = append(fields, field)
			}
			sort.Strings(fields)
			for _, field := range fields {
				fmt.Fprintf(os.Stderr, "  %s: %s\n", field, fieldErrs[field])
			}
			return errors.New("please correct the highlighted fields")
		}
		return err
	}

	fmt.Fprintln(a.out, "Order Placed Successfully!")
	return a.printOrder(order)
}

func (a *app) orders(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("orders", flag.ContinueOnError)
	user := fs.String("user", "", "Only orders of this user ID")
	status := fs.String("status", "", "Only orders in this status")
	if err := fs.Parse(args); err != nil {
		return err
	}

	orders, err := a.api.ListOrders(ctx, domain.OrderFilter{UserID: *user, Status: domain.OrderStatus(*status)})
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCUSTOMER\tSTATUS\tTOTAL\tPLACED\t")
	for _, o := range orders {
		customer := o.UserID
		if o.User != nil {
			customer = o.User.Name
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%s\t\n", o.ID, customer, o.Status, o.Total, o.CreatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func (a *app) order(ctx context.Context, args []string) error {
	if err := needArgs(args, 1, "order <id>"); err != nil {
		return err
	}
	order, err := a.api.GetOrder(ctx, args[0])
	if err != nil {
		return err
	}
	return a.printOrder(order)
}

func (a *app) status(ctx context.Context, args []string) error {
	if err := needArgs(args, 2, "status <id> <status>"); err != nil {
		return err
	}
	order, err := a.api.UpdateOrderStatus(ctx, args[0], domain.OrderStatus(strings.ToLower(args[1])))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Order %s is now %s\n", order.ID, order.Status)
	return nil
}

func (a *app) printOrder(o *domain.Order) error {
	fmt.Fprintf(a.out, "Order %s (%s)\n", o.ID, o.Status)
	if o.User != nil {
		fmt.Fprintf(a.out, "Customer: %s <%s>\n", o.User.Name, o.User.Email)
	}
	addr := o.ShippingAddress
	fmt.Fprintf(a.out, "Ship to:  %s, %s, %s %s, %s\n", addr.Street, addr.City, addr.State, addr.ZipCode, addr.Country)

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, item := range o.Items {
		fmt.Fprintf(w, "  %s\tx%d\t%.2f\t\n", item.Name, item.Quantity, domain.LineTotal(item.Price, item.Quantity))
	}
	fmt.Fprintf(w, "  Total\t\t%.2f\t\n", o.Total)
	return w.Flush()
}
