// Package quotes is the plugin that keeps a channel quote database in a
// local sqlite file and serves random or numbered quotes on demand.
package quotes

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/grvsrs/hostbot/pkg/command"
	"github.com/grvsrs/hostbot/pkg/plugin"
)

const (
	pluginName    = "quotes"
	pluginVersion = "1.0.0"

	defaultDBFile = "quotes.db"
)

const quoteHelp = `{0} [number]

Show a random quote from the quote database, or the quote with the
given number.

Examples:

@BotName !{0}
@BotName !{0} 12`

const addquoteHelp = `{0} <quote text> [- <author>]

Add a quote to the quote database. Everything after the last ' - ' is
treated as the author name.

Examples:

@BotName !{0} I have no idea what I'm doing - dave`

const removequoteHelp = `{0} <number>

Remove the quote with the given number from the quote database.

Examples:

@BotName !{0} 12`

const createTableStmt = `
CREATE TABLE IF NOT EXISTS quotes (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	text     TEXT NOT NULL,
	author   TEXT NOT NULL DEFAULT '',
	added_by TEXT NOT NULL DEFAULT '',
	added_at INTEGER NOT NULL
)`

// Plugin stores and serves quotes. The database connection is opened on
// enable and closed on disable.
type Plugin struct {
	host plugin.Host
	db   *sql.DB
}

var _ plugin.Plugin = (*Plugin)(nil)

func New() *Plugin { return &Plugin{} }

func (p *Plugin) Name() string    { return pluginName }
func (p *Plugin) Version() string { return pluginVersion }

func (p *Plugin) ShortDescription() string {
	return "Store and recall memorable quotes"
}

func (p *Plugin) LongDescription() string {
	return "Keeps a quote database in a local sqlite file. Anyone can " +
		"add and recall quotes; removing them needs admin rights."
}

func (p *Plugin) Open(h plugin.Host) error {
	p.host = h

	path := h.Config().Config().QuotesDBFile
	if path == "" {
		path = defaultDBFile
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return fmt.Errorf("open quote database: %w", err)
	}
	if _, err := db.Exec(createTableStmt); err != nil {
		db.Close()
		return fmt.Errorf("create quotes table: %w", err)
	}
	p.db = db

	proc := h.Commands()
	for _, c := range []struct {
		word      string
		handler   command.Handler
		adminOnly bool
		help      string
	}{
		{"quote", p.quote, false, quoteHelp},
		{"addquote", p.addquote, false, addquoteHelp},
		{"removequote", p.removequote, true, removequoteHelp},
	} {
		if err := proc.AddCommand(c.word, c.handler, c.adminOnly, c.help); err != nil {
			db.Close()
			p.db = nil
			return err
		}
	}
	return nil
}

func (p *Plugin) Close() {
	proc := p.host.Commands()
	for _, word := range []string{"quote", "addquote", "removequote"} {
		proc.RemoveCommand(word)
	}
	if p.db != nil {
		p.db.Close()
		p.db = nil
	}
}

// ---------------------------------------------------------------------------
// Command handlers
// ---------------------------------------------------------------------------

func (p *Plugin) quote(inv *command.Invocation) string {
	arg := strings.TrimSpace(inv.ArgText)

	var row *sql.Row
	if arg == "" {
		row = p.db.QueryRow("SELECT id, text, author FROM quotes ORDER BY RANDOM() LIMIT 1")
	} else {
		n, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Sprintf("'%s' is not a quote number", arg)
		}
		row = p.db.QueryRow("SELECT id, text, author FROM quotes WHERE id = ?", n)
	}

	var id int
	var text, author string
	if err := row.Scan(&id, &text, &author); err != nil {
		if err == sql.ErrNoRows {
			if arg == "" {
				return "The quote database is empty"
			}
			return fmt.Sprintf("There is no quote number %s", arg)
		}
		return "Sorry, the quote database isn't cooperating right now"
	}

	if author != "" {
		return fmt.Sprintf("Quote #%d: \"%s\" - %s", id, text, author)
	}
	return fmt.Sprintf("Quote #%d: \"%s\"", id, text)
}

func (p *Plugin) addquote(inv *command.Invocation) string {
	text := strings.TrimSpace(inv.ArgText)
	if text == "" {
		if c, ok := inv.Proc.Lookup(inv.Word); ok {
			return c.Help()
		}
		return ""
	}

	author := ""
	if idx := strings.LastIndex(text, " - "); idx > 0 {
		author = strings.TrimSpace(text[idx+3:])
		text = strings.TrimSpace(text[:idx])
	}

	res, err := p.db.Exec(
		"INSERT INTO quotes (text, author, added_by, added_at) VALUES (?, ?, ?, ?)",
		text, author, inv.Message.AuthorID, time.Now().Unix(),
	)
	if err != nil {
		return "Sorry, I couldn't save that quote"
	}

	id, _ := res.LastInsertId()
	return fmt.Sprintf("OK %s, saved as quote #%d", inv.Message.AuthorMention, id)
}

func (p *Plugin) removequote(inv *command.Invocation) string {
	arg := strings.TrimSpace(inv.ArgText)
	n, err := strconv.Atoi(arg)
	if err != nil {
		return fmt.Sprintf("'%s' is not a quote number", arg)
	}

	res, err := p.db.Exec("DELETE FROM quotes WHERE id = ?", n)
	if err != nil {
		return "Sorry, I couldn't remove that quote"
	}
	if count, _ := res.RowsAffected(); count == 0 {
		return fmt.Sprintf("There is no quote number %d", n)
	}
	return fmt.Sprintf("OK, removed quote #%d", n)
}
