package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/yashrajoria/restaurant-storefront/confirmation"
	apperrors "github.com/yashrajoria/restaurant-storefront/errors"
	"github.com/yashrajoria/restaurant-storefront/models"
	"github.com/yashrajoria/restaurant-storefront/money"
	"github.com/yashrajoria/restaurant-storefront/services"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func (a *app) runCart(ctx context.Context, args []string) error {
	if a.cartSync == nil {
		return apperrors.Configuration("cart commands need REDIS_URL to keep the cart between runs")
	}
	if len(args) == 0 {
		return apperrors.Configuration("usage: storefront cart add|list|remove|clear")
	}

	sub, args := args[0], args[1:]
	switch sub {
	case "add":
		fs := flag.NewFlagSet("cart add", flag.ContinueOnError)
		id := fs.Int("id", 0, "menu item id")
		title := fs.String("title", "", "menu item title")
		price := fs.String("price", "", "unit price, e.g. 12.50")
		qty := fs.Int("qty", 1, "quantity")
		if err := fs.Parse(args); err != nil {
			return err
		}
		unitPrice, err := decimal.NewFromString(*price)
		if err != nil {
			return apperrors.InvalidItem(fmt.Errorf("price %q: %w", *price, err))
		}
		item, err := a.store.Add(models.CartLineItem{MenuItemID: *id, Title: *title, UnitPrice: unitPrice, Quantity: *qty})
		if err != nil {
			return err
		}
		fmt.Printf("Added %s x%d (%s)\n", item.DisplayTitle(), item.Quantity, item.ID)

	case "list":
		printCart(a.store.Items())
		return nil

	case "remove":
		fs := flag.NewFlagSet("cart remove", flag.ContinueOnError)
		raw := fs.String("line", "", "line item id as shown by cart list")
		if err := fs.Parse(args); err != nil {
			return err
		}
		id, err := uuid.Parse(*raw)
		if err != nil {
			return apperrors.InvalidItem(fmt.Errorf("line id %q: %w", *raw, err))
		}
		if !a.store.Remove(id) {
			return apperrors.InvalidItem(fmt.Errorf("no line %s in the cart", id))
		}
		fmt.Println("Removed", id)

	case "clear":
		a.store.Reset()
		fmt.Println("Cart cleared")

	default:
		return apperrors.Configuration("unknown cart command %q", sub)
	}

	return a.cartSync.Persist(ctx, a.store.Snapshot())
}

func printCart(items []models.CartLineItem) {
	if len(items) == 0 {
		fmt.Println(apperrors.MsgEmptyCart)
		return
	}
	total := decimal.Zero
	for _, item := range items {
		fmt.Printf("%s  %-24s x%-3d %10s %10s\n",
			item.ID, item.DisplayTitle(), item.Quantity,
			money.FormatPrice(item.UnitPrice), money.FormatPrice(item.Subtotal()))
		total = total.Add(item.Subtotal())
	}
	fmt.Printf("Total: %s\n", money.FormatPrice(total))
}

// runConfirm runs one confirmation activation without the UI and prints
// the outcome. A confirmed payment clears the saved cart.
func (a *app) runConfirm(args []string) error {
	fs := flag.NewFlagSet("confirm", flag.ContinueOnError)
	sessionID := fs.String("session", "", "checkout session id from the return URL")
	if err := fs.Parse(args); err != nil {
		return err
	}

	done := make(chan confirmation.State, 1)
	view := confirmation.NewView(
		services.NewSessionFetcher(a.api, a.cfg.RequirePaidStatus, a.metrics, a.logger),
		a.creds,
		a.store,
		confirmation.NavigatorFunc(func() {}),
		confirmation.Options{HomeDelay: a.cfg.HomeRedirectDelay, Metrics: a.metrics, Logger: a.logger},
	)
	view.OnChange(func(u confirmation.Update) {
		if u.State.Phase.IsTerminal() {
			select {
			case done <- u.State:
			default:
			}
		}
	})

	view.Mount(*sessionID)
	defer func() {
		view.Teardown()
		view.Wait()
	}()

	var state confirmation.State
	select {
	case state = <-done:
	case <-time.After(a.cfg.RequestTimeout + time.Second):
		return apperrors.FetchFailed("timed out waiting for the payment record", nil)
	}

	if state.Phase == confirmation.PhaseFailed {
		a.logger.Warn("Headless confirmation failed", zap.String("reason", string(state.Reason())))
		return state.Err
	}

	p := state.Payment
	fmt.Println("Payment Successful")
	fmt.Printf("Thank you for your purchase, %s\n", p.CustomerEmail())
	fmt.Printf("Total Amount: %s\n", money.FormatMinor(p.AmountTotal, p.Currency))
	fmt.Printf("Session ID: %s\n", p.ID)

	if a.cartSync != nil {
		if err := a.cartSync.Persist(context.Background(), a.store.Snapshot()); err != nil {
			fmt.Fprintln(os.Stderr, "warning: saved cart was not cleared:", err)
		}
	}
	return nil
}
