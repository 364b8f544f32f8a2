package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/hanko-field/storefront/internal/domain"
	"github.com/hanko-field/storefront/internal/orderapi"
	"github.com/hanko-field/storefront/internal/storefront"
)

const usage = `usage: shopctl <command> [arguments]

commands:
  cart list | add | remove | set | clear
  wishlist list | add | remove | move
  login -token T [-uid ID -name NAME -email EMAIL]
  logout
  addresses list | add | delete ID | choose ID
  checkout [-address ID | -address-token T] -shipping standard|express
  pay -method card|upi|netbanking|wallet|cod [card flags]
  orders list | get ID | cancel ID
  confirmation
`

var errUsage = errors.New("invalid usage")

type canceller interface {
	CancelOrder(ctx context.Context, token, orderID, reason string) (domain.Order, error)
}

type app struct {
	store  *storefront.Store
	cancel canceller
	out    io.Writer
	money  moneyFormatter
}

func newApp(store *storefront.Store, api canceller, out io.Writer) *app {
	return &app{store: store, cancel: api, out: out, money: newMoneyFormatter()}
}

func (a *app) dispatch(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(a.out, usage)
		return errUsage
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "cart":
		return a.cart(ctx, rest)
	case "wishlist":
		return a.wishlist(ctx, rest)
	case "login":
		return a.login(ctx, rest)
	case "logout":
		return a.store.SignOut(ctx)
	case "addresses":
		return a.addresses(ctx, rest)
	case "checkout":
		return a.checkout(ctx, rest)
	case "pay":
		return a.pay(ctx, rest)
	case "orders":
		return a.orders(ctx, rest)
	case "confirmation":
		return a.confirmation(ctx)
	case "help", "-h", "--help":
		fmt.Fprint(a.out, usage)
		return nil
	default:
		fmt.Fprint(a.out, usage)
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func subcommand(args []string) (string, []string) {
	if len(args) == 0 {
		return "list", nil
	}
	return args[0], args[1:]
}

type lineFlags struct {
	productID string
	size      string
	color     string
}

func (l *lineFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&l.productID, "id", "", "product id")
	fs.StringVar(&l.size, "size", "", "size")
	fs.StringVar(&l.color, "color", "", "colour")
}

func (a *app) cart(ctx context.Context, args []string) error {
	sub, rest := subcommand(args)
	cart := a.store.Cart()
	switch sub {
	case "list":
		a.printLines(cart.Items())
		totals := a.store.Preview(domain.ShippingStandard)
		fmt.Fprintf(a.out, "%d item(s), subtotal %s\n", cart.TotalItemCount(), a.money.format(totals.Subtotal))
		a.printTotals(totals)
		return nil
	case "add":
		fs := flag.NewFlagSet("cart add", flag.ContinueOnError)
		var line lineFlags
		line.register(fs)
		name := fs.String("name", "", "product name")
		price := fs.Int64("price", 0, "unit price")
		image := fs.String("image", "", "image url")
		qty := fs.Int("qty", 1, "quantity")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		product := domain.Product{ID: line.productID, Name: *name, Price: *price, Image: *image}
		if err := cart.Add(ctx, product, *qty, line.size, line.color); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "cart has %d item(s)\n", cart.TotalItemCount())
		return nil
	case "remove":
		fs := flag.NewFlagSet("cart remove", flag.ContinueOnError)
		var line lineFlags
		line.register(fs)
		if err := fs.Parse(rest); err != nil {
			return err
		}
		return cart.Remove(ctx, line.productID, line.size, line.color)
	case "set":
		fs := flag.NewFlagSet("cart set", flag.ContinueOnError)
		var line lineFlags
		line.register(fs)
		qty := fs.Int("qty", 1, "new quantity; 0 removes the line")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		return cart.SetQuantity(ctx, line.productID, line.size, line.color, *qty)
	case "clear":
		return cart.Clear(ctx)
	default:
		return fmt.Errorf("%w: cart %s", errUsage, sub)
	}
}

func (a *app) wishlist(ctx context.Context, args []string) error {
	sub, rest := subcommand(args)
	wishlist := a.store.Wishlist()
	switch sub {
	case "list":
		for _, p := range wishlist.Items() {
			fmt.Fprintf(a.out, "%s\t%s\t%s\n", p.ID, p.Name, a.money.format(p.Price))
		}
		return nil
	case "add":
		fs := flag.NewFlagSet("wishlist add", flag.ContinueOnError)
		id := fs.String("id", "", "product id")
		name := fs.String("name", "", "product name")
		price := fs.Int64("price", 0, "unit price")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		return wishlist.Add(ctx, domain.Product{ID: *id, Name: *name, Price: *price})
	case "remove":
		if len(rest) != 1 {
			return fmt.Errorf("%w: wishlist remove PRODUCT_ID", errUsage)
		}
		return wishlist.Remove(ctx, rest[0])
	case "move":
		fs := flag.NewFlagSet("wishlist move", flag.ContinueOnError)
		var line lineFlags
		line.register(fs)
		if err := fs.Parse(rest); err != nil {
			return err
		}
		return wishlist.MoveToCart(ctx, a.store.Cart(), line.productID, line.size, line.color)
	default:
		return fmt.Errorf("%w: wishlist %s", errUsage, sub)
	}
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	token := fs.String("token", "", "bearer token issued by the API")
	uid := fs.String("uid", "", "user id")
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "email")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*token) == "" {
		return fmt.Errorf("%w: login requires -token", errUsage)
	}
	return a.store.Session().SignIn(ctx, domain.UserProfile{ID: *uid, Name: *name, Email: *email}, *token)
}

func (a *app) addresses(ctx context.Context, args []string) error {
	sub, rest := subcommand(args)
	book := a.store.Addresses()
	switch sub {
	case "list":
		result := book.Load(ctx)
		if result.Err != nil {
			return result.Err
		}
		a.printAddresses(result.Value)
		return nil
	case "add":
		fs := flag.NewFlagSet("addresses add", flag.ContinueOnError)
		var addr domain.Address
		fs.StringVar(&addr.FirstName, "first-name", "", "first name")
		fs.StringVar(&addr.LastName, "last-name", "", "last name")
		fs.StringVar(&addr.Phone, "phone", "", "phone")
		fs.StringVar(&addr.Line1, "line1", "", "address line 1")
		fs.StringVar(&addr.Line2, "line2", "", "address line 2")
		fs.StringVar(&addr.City, "city", "", "city")
		fs.StringVar(&addr.State, "state", "", "state")
		fs.StringVar(&addr.PostalCode, "zip", "", "postal code")
		fs.StringVar(&addr.Country, "country", "", "country")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		list, err := book.Add(ctx, addr)
		if err != nil {
			return err
		}
		a.printAddresses(list)
		return nil
	case "delete":
		if len(rest) != 1 {
			return fmt.Errorf("%w: addresses delete ID", errUsage)
		}
		list, err := book.Delete(ctx, rest[0])
		if err != nil {
			return err
		}
		a.printAddresses(list)
		return nil
	case "choose":
		if len(rest) != 1 {
			return fmt.Errorf("%w: addresses choose ID", errUsage)
		}
		if result := book.Load(ctx); result.Err != nil {
			return result.Err
		}
		handoff, err := book.Choose(ctx, rest[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "address token %s\n", handoff.ID)
		return nil
	default:
		return fmt.Errorf("%w: addresses %s", errUsage, sub)
	}
}

func (a *app) checkout(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("checkout", flag.ContinueOnError)
	addressID := fs.String("address", "", "address id; defaults to the default address")
	addressToken := fs.String("address-token", "", "token printed by `addresses choose`")
	shipping := fs.String("shipping", string(domain.ShippingStandard), "standard or express")
	if err := fs.Parse(args); err != nil {
		return err
	}
	method, err := domain.ParseShippingMethod(*shipping)
	if err != nil {
		return err
	}

	token := strings.TrimSpace(*addressToken)
	if token == "" {
		book := a.store.Addresses()
		if result := book.Load(ctx); result.Err != nil {
			return result.Err
		}
		id := strings.TrimSpace(*addressID)
		if id == "" {
			def, ok := book.Default()
			if !ok {
				return errors.New("no saved address; run `shopctl addresses add` first")
			}
			id = def.ID
		}
		chosen, err := book.Choose(ctx, id)
		if err != nil {
			return err
		}
		token = chosen.ID
	}

	session, err := a.store.BeginCheckout(ctx, storefront.BeginCheckoutOptions{
		AddressToken:   token,
		ShippingMethod: method,
	})
	if err != nil {
		return err
	}
	frozen, err := session.Freeze(ctx)
	if err != nil {
		return err
	}
	a.printLines(frozen.Payload.Items)
	a.printTotals(frozen.Payload.Totals)
	fmt.Fprintf(a.out, "checkout %s ready for payment\n", frozen.ID)
	return nil
}

func (a *app) pay(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("pay", flag.ContinueOnError)
	method := fs.String("method", "", "card, upi, netbanking, wallet or cod")
	var card storefront.CardDetails
	fs.StringVar(&card.Number, "card-number", "", "16 digit card number")
	fs.StringVar(&card.HolderName, "card-name", "", "name on card")
	fs.StringVar(&card.Expiry, "card-expiry", "", "MM/YY")
	fs.StringVar(&card.CVV, "card-cvv", "", "3 digit CVV")
	if err := fs.Parse(args); err != nil {
		return err
	}

	session, err := a.store.ResumeCheckout(ctx)
	if err != nil {
		return fmt.Errorf("no checkout awaiting payment: %w", err)
	}
	frozen, ok := session.Frozen()
	if !ok {
		return errors.New("checkout is not frozen")
	}

	selection := storefront.PaymentSelection{Method: domain.PaymentMethod(strings.ToLower(strings.TrimSpace(*method)))}
	if selection.Method == domain.PaymentCard {
		selection.Card = &card
	}
	confirmation, err := a.store.Submit(ctx, frozen, selection)
	if confirmation.OrderID != "" {
		a.printConfirmation(confirmation)
	}
	return err
}

func (a *app) orders(ctx context.Context, args []string) error {
	sub, rest := subcommand(args)
	history := a.store.Orders()
	switch sub {
	case "list":
		result := history.Load(ctx)
		if result.Err != nil {
			return result.Err
		}
		orders := result.Value
		sort.SliceStable(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
		w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
		for _, o := range orders {
			fmt.Fprintf(w, "%s\t%s\t%d item(s)\t%s\t%s\n", o.ID, o.Status, domain.QuantityOf(o.Items), a.money.format(o.Total), o.CreatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	case "get":
		if len(rest) != 1 {
			return fmt.Errorf("%w: orders get ID", errUsage)
		}
		order, err := history.Get(ctx, rest[0])
		if err != nil {
			return err
		}
		a.printOrder(order)
		return nil
	case "cancel":
		fs := flag.NewFlagSet("orders cancel", flag.ContinueOnError)
		reason := fs.String("reason", "", "cancellation reason")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if fs.NArg() != 1 {
			return fmt.Errorf("%w: orders cancel [-reason R] ID", errUsage)
		}
		token, err := a.store.Session().Credential()
		if err != nil {
			return err
		}
		order, err := a.cancel.CancelOrder(ctx, token, fs.Arg(0), *reason)
		if err != nil {
			return err
		}
		a.printOrder(order)
		return nil
	default:
		return fmt.Errorf("%w: orders %s", errUsage, sub)
	}
}

func (a *app) confirmation(ctx context.Context) error {
	confirmation, found, err := a.store.LastConfirmation(ctx)
	if err != nil {
		return err
	}
	if !found {
		fmt.Fprintln(a.out, "no order placed from this device")
		return nil
	}
	a.printConfirmation(confirmation)
	return nil
}

func (a *app) printLines(items []domain.LineItem) {
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, item := range items {
		fmt.Fprintf(w, "%s\t%s\t%s/%s\tx%d\t%s\n", item.ProductID, item.Name, dash(item.Size), dash(item.Color), item.Quantity, a.money.format(item.LineTotal()))
	}
	_ = w.Flush()
}

func (a *app) printTotals(t domain.Totals) {
	fmt.Fprintf(a.out, "subtotal %s  tax %s  shipping %s  total %s\n",
		a.money.format(t.Subtotal), a.money.format(t.Tax), a.money.format(t.Shipping), a.money.format(t.Total))
}

func (a *app) printAddresses(list []domain.Address) {
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, addr := range list {
		marker := ""
		if addr.IsDefault {
			marker = "*"
		}
		fmt.Fprintf(w, "%s%s\t%s\t%s, %s %s, %s\n", marker, addr.ID, addr.FullName(), addr.Line1, addr.City, addr.PostalCode, addr.Country)
	}
	_ = w.Flush()
}

func (a *app) printOrder(order domain.Order) {
	fmt.Fprintf(a.out, "order %s  %s  payment %s (%s)\n", order.ID, order.Status, order.Payment.Status, order.PaymentMethod)
	if order.CancelReason != "" {
		fmt.Fprintf(a.out, "cancelled: %s\n", order.CancelReason)
	}
	a.printLines(order.Items)
	a.printTotals(order.Totals)
}

func (a *app) printConfirmation(c storefront.OrderConfirmation) {
	fmt.Fprintf(a.out, "order %s placed (%s), paid by %s, transaction %s\n", c.OrderID, c.Status, c.PaymentMethod, c.TransactionID)
	a.printLines(c.Items)
	a.printTotals(c.Totals)
	fmt.Fprintf(a.out, "ships to %s, %s, %s\n", c.Address.FullName(), c.Address.Line1, c.Address.City)
}

func dash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

var _ canceller = (*orderapi.Client)(nil)
