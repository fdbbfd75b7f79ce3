package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"face-search/internal/controller"
	"face-search/internal/models"
	"face-search/internal/render"

	"github.com/spf13/cobra"
)

const interactiveHelp = `Commands:
  image <path>          select a photo and search
  set <param> <value>   change num_rows, tolerance_var, min_age or max_age
  clear                 drop the photo and results
  show                  print the current session
  wait                  block until the current search finishes
  quit                  exit
`

func newInteractiveCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "interactive",
		Short: "Drive a search session with commands from stdin",
		Long: `Drive a live search session with commands read from stdin.
Every change of the photo or a parameter starts a new search, and every
session transition is printed.

` + interactiveHelp,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractive(cmd, root)
		},
	}
}

// console сериализует вывод горутины подписки и цикла команд
type console struct {
	mu   sync.Mutex
	out  io.Writer
	opts render.Options
}

func (c *console) session(s models.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "[%s]\n", s.Status)
	_ = render.Text(c.out, render.Build(s), c.opts)
}

func (c *console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

func runInteractive(cmd *cobra.Command, root *rootOptions) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	ctrl := root.newController(cmd)
	go ctrl.Run(ctx)

	out := cmd.OutOrStdout()
	con := &console{out: out, opts: root.renderOptions(out)}

	updates := ctrl.Subscribe()
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for s := range updates {
			con.session(s)
		}
	}()

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "quit" || fields[0] == "exit" {
			break
		}
		runCommand(ctx, ctrl, con, root, fields)
	}

	// Дожидаемся применения уже отправленных команд
	barrier := ctrl.Subscribe()
	<-barrier
	ctrl.Unsubscribe(barrier)

	cancel()
	<-printed
	return scanner.Err()
}

func runCommand(ctx context.Context, ctrl *controller.Controller, con *console, root *rootOptions, fields []string) {
	switch fields[0] {
	case "image":
		if len(fields) < 2 {
			con.printf("usage: image <path>\n")
			return
		}
		data, err := os.ReadFile(strings.Join(fields[1:], " "))
		if err != nil {
			con.printf("cannot open image: %v\n", err)
			return
		}
		ctrl.SubmitImage(bytes.NewReader(data))
	case "set":
		if len(fields) != 3 {
			con.printf("usage: set <param> <value>\n")
			return
		}
		if err := ctrl.UpdateParameter(fields[1], fields[2]); err != nil {
			con.printf("invalid value: %v\n", err)
		}
	case "clear":
		ctrl.ClearImage()
	case "show":
		con.session(ctrl.Session())
	case "wait":
		waitCtx, cancel := context.WithTimeout(ctx, root.timeout)
		defer cancel()
		if _, err := awaitSettled(waitCtx, ctrl); err != nil {
			con.printf("wait: %v\n", err)
		}
	case "help":
		con.printf("%s", interactiveHelp)
	default:
		con.printf("unknown command %q, type help\n", fields[0])
	}
}

// awaitSettled ждет завершения текущего поиска.
// Первое состояние подписки учитывает все уже отправленные команды
func awaitSettled(ctx context.Context, ctrl *controller.Controller) (models.Session, error) {
	updates := ctrl.Subscribe()
	defer ctrl.Unsubscribe(updates)

	for {
		select {
		case <-ctx.Done():
			return models.Session{}, ctx.Err()
		case s, ok := <-updates:
			if !ok {
				return models.Session{}, context.Canceled
			}
			if s.Status == models.StatusSuccess || s.Status == models.StatusError {
				return s, nil
			}
		}
	}
}
