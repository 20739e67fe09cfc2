package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"washcycle.game/internal/persistence/indexdb"
)

const dbUsage = "usage: admin db [-data ./data] [-world WORLD|-db PATH] [-limit N] [-since T] [-holder H] [-owner ULID] snapshots|meta|transfers|inputs|owner"

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "wash_1", "world id (ignored with -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	limit := fs.Int("limit", 20, "result limit")
	since := fs.Uint64("since", 0, "only rows at or after this tick")
	holder := fs.String("holder", "", "holder filter (transfers: from or to; inputs: target)")
	owner := fs.String("owner", "", "item owner (persistent customer id) for the owner query")
	_ = fs.Parse(args)

	q := "snapshots"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}
	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "worlds", *worldID, "index", "world.sqlite")
	}
	if *limit <= 0 {
		*limit = 20
	}

	if q == "owner" {
		if strings.TrimSpace(*owner) == "" {
			fmt.Fprintln(os.Stderr, "missing -owner")
			os.Exit(2)
		}
		idx, err := indexdb.OpenSQLite(path)
		if err != nil {
			fmt.Fprintln(os.Stderr, "open:", err)
			os.Exit(1)
		}
		defer idx.Close()
		rows, err := idx.OwnerHistory(context.Background(), strings.TrimSpace(*owner))
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		for _, r := range rows {
			printJSON(r)
		}
		return
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	switch q {
	case "snapshots":
		queryRows(db, []string{"tick", "path", "seed", "customers", "machines", "player_items"},
			`SELECT tick,path,seed,customers,machines,player_items FROM snapshots WHERE tick>=? ORDER BY tick DESC LIMIT ?`,
			*since, *limit)
	case "meta":
		queryRows(db, []string{"key", "value"}, `SELECT key,value FROM meta ORDER BY key`)
	case "transfers":
		if h := strings.TrimSpace(*holder); h != "" {
			queryRows(db, []string{"tick", "seq", "kind", "from", "to", "count"},
				`SELECT tick,seq,kind,from_holder,to_holder,count FROM transfers WHERE tick>=? AND (from_holder=? OR to_holder=?) ORDER BY tick DESC, seq DESC LIMIT ?`,
				*since, h, h, *limit)
			return
		}
		queryRows(db, []string{"tick", "seq", "kind", "from", "to", "count"},
			`SELECT tick,seq,kind,from_holder,to_holder,count FROM transfers WHERE tick>=? ORDER BY tick DESC, seq DESC LIMIT ?`,
			*since, *limit)
	case "inputs":
		if h := strings.TrimSpace(*holder); h != "" {
			queryRows(db, []string{"tick", "seq", "session_id", "type", "target"},
				`SELECT tick,seq,session_id,type,target FROM inputs WHERE target=? AND tick>=? ORDER BY tick DESC, seq DESC LIMIT ?`,
				h, *since, *limit)
			return
		}
		queryRows(db, []string{"tick", "seq", "session_id", "type", "target"},
			`SELECT tick,seq,session_id,type,target FROM inputs WHERE tick>=? ORDER BY tick DESC, seq DESC LIMIT ?`,
			*since, *limit)
	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q)
		fmt.Fprintln(os.Stderr, dbUsage)
		os.Exit(2)
	}
}

// queryRows prints each result row as a JSON object keyed by cols.
func queryRows(db *sql.DB, cols []string, query string, args ...any) {
	rows, err := db.Query(query, args...)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	defer rows.Close()
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			fmt.Fprintln(os.Stderr, "scan:", err)
			os.Exit(1)
		}
		out := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				out[c] = string(b)
				continue
			}
			out[c] = vals[i]
		}
		printJSON(out)
	}
	if err := rows.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "rows:", err)
		os.Exit(1)
	}
}
