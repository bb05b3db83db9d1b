package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/KabeerThockchom/voxfolio/internal/account"
	"github.com/KabeerThockchom/voxfolio/internal/session"
)

// errQuit signals a user-requested exit from the command loop.
var errQuit = errors.New("quit")

const commandHelp = `Commands:
  start                       start a voice session
  stop                        end the voice session
  mute / unmute               gate the microphone (playback keeps running)
  realtime on|off             switch backend pipeline mode (restarts session)
  status                      show session state
  login <email> <password>    authenticate against the portfolio backend
  balance                     show cash balance
  portfolio                   show portfolio summary
  accounts                    list linked bank accounts
  transfer <account> <amount> move funds from a bank account to brokerage
  quote <symbol>              show a stock quote
  logs [session-id]           show stored session logs
  sessions                    list sessions with stored logs
  reset                       reset the backend demo database
  quit                        exit`

// commandLoop reads commands from cmdIn until EOF, quit, or ctx
// cancellation. Stdin reads cannot be interrupted, so lines are pumped
// through a channel and the loop selects against ctx.
func (a *App) commandLoop(ctx context.Context) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(a.cmdIn)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	fmt.Fprintln(a.cmdOut, `voxfolio ready — type "help" for commands`)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := a.runCommand(ctx, line); err != nil {
				if errors.Is(err, errQuit) {
					return nil
				}
				fmt.Fprintln(a.cmdOut, "error:", err)
			}
		}
	}
}

func (a *App) runCommand(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "help":
		fmt.Fprintln(a.cmdOut, commandHelp)
		return nil
	case "quit", "exit":
		return errQuit

	case "start":
		if err := a.StartSession(ctx); err != nil {
			return err
		}
		fmt.Fprintln(a.cmdOut, "session started:", a.controller.ID())
		return nil
	case "stop":
		if err := a.StopSession(); err != nil {
			return err
		}
		fmt.Fprintln(a.cmdOut, "session stopped")
		return nil
	case "mute":
		return a.controller.SetMuted(true)
	case "unmute":
		return a.controller.SetMuted(false)
	case "realtime":
		if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
			return errors.New("usage: realtime on|off")
		}
		return a.SetRealtime(ctx, args[0] == "on")
	case "status":
		st := a.controller.State()
		fmt.Fprintln(a.cmdOut, "state:", st)
		if st != session.StateIdle {
			fmt.Fprintln(a.cmdOut, "session:", a.controller.ID())
		}
		return nil

	case "login":
		return a.cmdLogin(ctx, args)
	case "balance":
		return a.cmdBalance(ctx)
	case "portfolio":
		return a.cmdPortfolio(ctx)
	case "accounts":
		return a.cmdAccounts(ctx)
	case "transfer":
		return a.cmdTransfer(ctx, args)
	case "quote":
		return a.cmdQuote(ctx, args)
	case "reset":
		return a.cmdReset(ctx)

	case "logs":
		return a.cmdLogs(ctx, args)
	case "sessions":
		return a.cmdSessions(ctx)

	default:
		return fmt.Errorf("unknown command %q (try help)", cmd)
	}
}

// requireBackend guards commands that need the REST client.
func (a *App) requireBackend() (*account.Client, error) {
	if a.accounts == nil {
		return nil, errors.New("no api_base_url configured")
	}
	return a.accounts, nil
}

// requireLogin guards commands that need an authenticated user.
func (a *App) requireLogin() (account.User, error) {
	a.userMu.Lock()
	defer a.userMu.Unlock()
	if a.user.ID == 0 {
		return account.User{}, errors.New("not logged in (use: login <email> <password>)")
	}
	return a.user, nil
}

func (a *App) cmdLogin(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: login <email> <password>")
	}
	client, err := a.requireBackend()
	if err != nil {
		return err
	}
	user, err := client.Authenticate(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	a.userMu.Lock()
	a.user = user
	a.userMu.Unlock()
	fmt.Fprintf(a.cmdOut, "logged in as %s (user %d)\n", user.Username, user.ID)
	return nil
}

func (a *App) cmdBalance(ctx context.Context) error {
	client, err := a.requireBackend()
	if err != nil {
		return err
	}
	user, err := a.requireLogin()
	if err != nil {
		return err
	}

	a.balanceMu.Lock()
	if a.balanceValid {
		cached := a.balance
		a.balanceMu.Unlock()
		fmt.Fprintf(a.cmdOut, "cash balance: $%.2f (cached)\n", cached)
		return nil
	}
	a.balanceMu.Unlock()

	balance, err := client.CashBalance(ctx, user.ID)
	if err != nil {
		return err
	}
	a.balanceMu.Lock()
	a.balance = balance
	a.balanceValid = true
	a.balanceMu.Unlock()
	fmt.Fprintf(a.cmdOut, "cash balance: $%.2f\n", balance)
	return nil
}

func (a *App) cmdPortfolio(ctx context.Context) error {
	client, err := a.requireBackend()
	if err != nil {
		return err
	}
	user, err := a.requireLogin()
	if err != nil {
		return err
	}
	summary, err := client.PortfolioSummary(ctx, user.ID, a.currentConfig().Session.Realtime)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.cmdOut, string(summary))
	return nil
}

func (a *App) cmdAccounts(ctx context.Context) error {
	client, err := a.requireBackend()
	if err != nil {
		return err
	}
	user, err := a.requireLogin()
	if err != nil {
		return err
	}
	accounts, err := client.BankAccounts(ctx, user.ID)
	if err != nil {
		return err
	}
	for _, acct := range accounts {
		fmt.Fprintf(a.cmdOut, "%d  %s %s (%s)  $%.2f available\n",
			acct.ID, acct.BankName, acct.AccountNumber, acct.AccountType, acct.AvailableBalance)
	}
	return nil
}

func (a *App) cmdTransfer(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: transfer <bank-account-id> <amount>")
	}
	client, err := a.requireBackend()
	if err != nil {
		return err
	}
	user, err := a.requireLogin()
	if err != nil {
		return err
	}
	acctID, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("bank account id %q: %w", args[0], err)
	}
	amount, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("amount %q: %w", args[1], err)
	}

	result, err := client.TransferFunds(ctx, user.ID, acctID, amount)
	if err != nil {
		return err
	}
	// A settled transfer changes the cash balance.
	a.balanceMu.Lock()
	a.balance = result.NewCashBalance
	a.balanceValid = true
	a.balanceMu.Unlock()
	fmt.Fprintf(a.cmdOut, "%s — cash balance now $%.2f\n", result.Message, result.NewCashBalance)
	return nil
}

func (a *App) cmdQuote(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: quote <symbol>")
	}
	client, err := a.requireBackend()
	if err != nil {
		return err
	}
	q, err := client.StockQuote(ctx, strings.ToUpper(args[0]))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.cmdOut, "%s (%s): $%.2f  prev close $%.2f  range $%.2f–$%.2f\n",
		q.Symbol, q.Name, q.CurrentPrice, q.PreviousClose, q.DayLow, q.DayHigh)
	return nil
}

func (a *App) cmdReset(ctx context.Context) error {
	client, err := a.requireBackend()
	if err != nil {
		return err
	}
	user, err := a.requireLogin()
	if err != nil {
		return err
	}
	if err := client.ResetDB(ctx, user.ID); err != nil {
		return err
	}
	a.balanceMu.Lock()
	a.balanceValid = false
	a.balanceMu.Unlock()
	fmt.Fprintln(a.cmdOut, "backend database reset")
	return nil
}

func (a *App) cmdLogs(ctx context.Context, args []string) error {
	if a.logs == nil {
		return errors.New("session logs disabled")
	}
	sessionID := a.controller.ID()
	if len(args) == 1 {
		sessionID = args[0]
	}
	if sessionID == "" {
		return errors.New("no session yet (usage: logs [session-id])")
	}
	entries, err := a.logs.List(ctx, sessionID)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(a.cmdOut, "no logs for session", sessionID)
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(a.cmdOut, "%s [%s] %s\n", e.LoggedAt, e.Level, e.Message)
	}
	return nil
}

func (a *App) cmdSessions(ctx context.Context) error {
	if a.logs == nil {
		return errors.New("session logs disabled")
	}
	ids, err := a.logs.Sessions(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		fmt.Fprintln(a.cmdOut, id)
	}
	return nil
}
