package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/closetapp/closet-sync/internal/client/sync"
)

// Login stores the session credential. Tokens are issued elsewhere; this
// client only stores and presents them.
func (a *App) Login(ctx context.Context) error {
	userID, err := prompt("User ID")
	if err != nil {
		return err
	}
	username, err := prompt("Username")
	if err != nil {
		return err
	}
	token, err := promptSecret("Token")
	if err != nil {
		return err
	}
	if userID == "" || token == "" {
		return fmt.Errorf("user id and token are required")
	}

	a.cfg.UserID = userID
	a.cfg.Username = username
	a.cfg.Token = token
	a.cfg.Enabled = true
	if err := a.cfg.Save(a.cfgPath); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	fmt.Printf("Logged in as %s; credentials stored in %s\n", username, a.cfgPath)
	return nil
}

// SyncOnce runs a single pass and prints the result.
func (a *App) SyncOnce(ctx context.Context) error {
	res := a.engine.Sync(ctx)
	printResult(res)
	if !res.Success {
		return fmt.Errorf("sync failed: %s", res.Error)
	}
	return nil
}

// Auto runs the recurring scheduler until interrupted, echoing engine events.
func (a *App) Auto(ctx context.Context) error {
	unsubscribe := a.engine.Subscribe(func(ev sync.Event) {
		switch ev.Type {
		case sync.EventSyncStarted:
			fmt.Println("sync started")
		case sync.EventSyncProgress:
			fmt.Printf("  %s...\n", ev.Step)
		case sync.EventSyncCompleted:
			printResult(ev.Result)
		case sync.EventSyncError:
			fmt.Printf("sync error: %s\n", ev.Error)
		case sync.EventAuthRequired:
			fmt.Println("session expired; run `closet-sync login`")
		}
	})
	defer unsubscribe()

	a.engine.StartAutoSync()
	defer a.engine.StopAutoSync()
	fmt.Printf("auto-sync every %s; Ctrl-C to stop\n", a.cfg.AutoSyncInterval)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}
	return nil
}

// Status prints the persisted sync metadata.
func (a *App) Status(ctx context.Context) error {
	st, err := a.store.Status(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("server:          %s\n", a.cfg.ServerURL)
	fmt.Printf("enabled:         %v\n", a.cfg.Enabled)
	fmt.Printf("last version:    %d\n", st.LastSyncVersion)
	if st.LastSyncAt > 0 {
		fmt.Printf("last sync:       %s\n", time.UnixMilli(st.LastSyncAt).Format(time.RFC3339))
	} else {
		fmt.Printf("last sync:       never\n")
	}
	fmt.Printf("pending changes: %d\n", st.PendingChanges)
	if st.LastError != "" {
		fmt.Printf("last error:      %s\n", st.LastError)
	}
	return nil
}

func printResult(res *sync.Result) {
	if res == nil {
		return
	}
	if !res.Success {
		fmt.Printf("sync failed after %s: %s\n", res.Duration.Round(time.Millisecond), res.Error)
		return
	}
	fmt.Printf("synced in %s: pulled %d, pushed %d, images +%d/-%d, conflicts %d\n",
		res.Duration.Round(time.Millisecond), res.Pulled, res.Pushed,
		res.ImagesUploaded, res.ImagesDownloaded, res.Conflicts)
}
