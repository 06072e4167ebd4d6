package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/connectra/internal/api"
	"github.com/connectra/internal/logger"
	"github.com/connectra/internal/model"
	"github.com/connectra/internal/session"
	"github.com/connectra/internal/ws"
)

func main() {
	logger.SetPrefix("client")
	server := flag.String("server", "http://localhost:2012", "API server base URL")
	user := flag.String("user", os.Getenv("CONNECTRA_USER"), "username to connect as")
	notify := flag.Bool("notify", true, "print notification lines for background activity")
	flag.Parse()

	if *user == "" {
		fmt.Fprintln(os.Stderr, "usage: client -user <name> [-server <url>]")
		os.Exit(1)
	}

	client := api.NewClient(*server, *user)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn, err := ws.Dial(ctx, *server, *user)
	if err != nil {
		logger.Errorf("connect: %v", err)
		os.Exit(1)
	}

	out := &console{}
	input := &lineInput{}
	var notifier session.Notifier
	if *notify {
		notifier = &consoleNotifier{out: out, granted: true}
	}
	sess := session.New(*user, client, conn, out, notifier, input)

	connCtx, connCancel := context.WithCancel(ctx)
	conn.Start(connCtx, connCancel, sess)

	if err := sess.LoadRoster(ctx); err != nil {
		logger.Errorf("roster: %v", err)
	}
	if err := sess.OpenChat(ctx, model.GlobalChatID); err != nil {
		logger.Errorf("open global: %v", err)
	}
	out.printf("connected to %s as %s (global chat). /help for commands.", *server, *user)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		cancel()
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "/") {
			if !runCommand(ctx, sess, client, out, line) {
				break
			}
			continue
		}
		input.SetValue(line)
		// Line-buffered input collapses a keystroke burst into one event;
		// sending right after still exercises the trailing stop_typing.
		sess.Presence().InputChanged()
		if err := sess.SendMessage(ctx, input.Value()); err != nil {
			out.printf("error: %v", err)
		}
	}

	conn.Close()
	conn.Wait()
}

func runCommand(ctx context.Context, sess *session.Session, client *api.Client, out *console, line string) bool {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]
	switch cmd {
	case "/quit":
		return false
	case "/help":
		out.printf("commands: /dm <user>, /global, /users, /chats, /file <path> [caption], /profile <user>, /follow <user>, /quit")
	case "/dm":
		if len(args) != 1 {
			out.printf("usage: /dm <user>")
			return true
		}
		chatID, err := sess.OpenDirectChat(ctx, args[0])
		if err != nil {
			out.printf("error: %v", err)
			return true
		}
		out.printf("now chatting in %s", chatID)
	case "/global":
		if err := sess.OpenChat(ctx, model.GlobalChatID); err != nil {
			out.printf("error: %v", err)
		}
	case "/users":
		for _, u := range sess.Presence().Roster() {
			marker := " "
			if u.Online {
				marker = "*"
			}
			out.printf("%s %s", marker, u.Username)
		}
	case "/chats":
		for _, c := range sess.RecentChats() {
			unread := ""
			if c.UnreadCount > 0 {
				unread = fmt.Sprintf(" (%d unread)", c.UnreadCount)
			}
			out.printf("%s%s", c.ID, unread)
		}
	case "/file":
		if len(args) < 1 {
			out.printf("usage: /file <path> [caption]")
			return true
		}
		caption := strings.Join(args[1:], " ")
		if err := client.SendFile(ctx, sess.ActiveChat(), caption, args[0]); err != nil {
			out.printf("error: %v", err)
		}
	case "/profile":
		if len(args) != 1 {
			out.printf("usage: /profile <user>")
			return true
		}
		p, err := client.Profile(ctx, args[0])
		if err != nil {
			out.printf("error: %v", err)
			return true
		}
		out.printf("%s: %d followers, %d following, %d clips", p.Username, p.FollowersCount, p.FollowingCount, p.ClipsCount)
	case "/follow":
		if len(args) != 1 {
			out.printf("usage: /follow <user>")
			return true
		}
		res, err := client.Follow(ctx, args[0])
		if err != nil {
			out.printf("error: %v", err)
			return true
		}
		state := "unfollowed"
		if res.Following {
			state = "following"
		}
		out.printf("%s %s (%d followers)", state, args[0], res.FollowersCount)
	default:
		out.printf("unknown command %s", cmd)
	}
	return true
}

// console renders the chat view as plain stdout lines. Writes are serialized
// so pump goroutines and the input loop do not interleave mid-line.
type console struct {
	mu sync.Mutex
}

func (c *console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Printf(format+"\n", args...)
}

func (c *console) RenderHistory(chatID string, msgs []model.Message) {
	c.printf("--- %s (%d messages) ---", chatID, len(msgs))
	for i := range msgs {
		c.AppendMessage(chatID, msgs[i])
	}
}

func (c *console) AppendMessage(chatID string, msg model.Message) {
	body := msg.RawContent
	if body == "" {
		body = msg.Content
	}
	line := fmt.Sprintf("[%s] %s: %s", msg.CreatedAt.Local().Format("15:04"), msg.Username, body)
	for _, a := range msg.Attachments {
		line += fmt.Sprintf(" (%s: %s)", a.Type, a.Filename)
	}
	c.printf("%s", line)
}

func (c *console) SetTypingVisible(chatID string, visible bool) {
	if visible {
		c.printf("... someone is typing")
	}
}

func (c *console) RenderRoster(users []model.User) {
	online := 0
	for _, u := range users {
		if u.Online {
			online++
		}
	}
	c.printf("roster: %d users, %d online", len(users), online)
}

// lineInput holds the pending outgoing line; the session clears it on send
// and restores it on transport failure.
type lineInput struct {
	mu  sync.Mutex
	val string
}

func (i *lineInput) Value() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.val
}

func (i *lineInput) SetValue(text string) {
	i.mu.Lock()
	i.val = text
	i.mu.Unlock()
}

// consoleNotifier prints background-activity notifications. A recorded
// permission denial silences it for the rest of the session.
type consoleNotifier struct {
	out     *console
	granted bool
}

func (n *consoleNotifier) Notify(kind session.NotificationKind, fromUser, message, chatID string) {
	if !n.granted {
		return
	}
	n.out.printf("[%s] %s in %s: %s", kind, fromUser, chatID, message)
}
