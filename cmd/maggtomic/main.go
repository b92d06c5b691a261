package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"github.com/polyneme/maggtomic/config"
	"github.com/polyneme/maggtomic/store"
)

func main() {
	var bootstrap bool
	var interactive bool
	var help bool
	var assertPath string
	var queryStr string
	var asOf string
	var prefixesStr string

	flag.BoolVar(&bootstrap, "bootstrap", false, "create the collection's schema and indexes, then exit")
	flag.BoolVar(&interactive, "i", false, "interactive mode")
	flag.BoolVar(&help, "h", false, "show help")
	flag.StringVar(&assertPath, "assert", "", "path to a file of \"e a v\" lines to assert (\"-\" for stdin)")
	flag.StringVar(&queryStr, "query", "", "a JSON query spec to run and exit")
	flag.StringVar(&asOf, "as-of", "", "RFC3339 instant to evaluate the query as of (default: now)")
	flag.StringVar(&prefixesStr, "prefixes", "", "comma-separated extra prefix=uri pairs")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "A bitemporal datom store CLI, configured from MAGGTOMIC_* env vars.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -bootstrap\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -assert data.triples\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -prefixes schema=http://schema.org/ -query '{\"where\":[[\"?p\",\"schema:name\",\"?name\"]]}'\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -i\n", os.Args[0])
	}
	flag.Parse()

	if help {
		flag.Usage()
		os.Exit(0)
	}

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	configureLogging(cfg)

	ctx := context.Background()
	s, err := connect(ctx, cfg)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}

	prefixes := parsePrefixes(prefixesStr)
	resolver := store.NewResourceResolver(s)
	engine := store.NewTransactionEngine(s, resolver)
	evaluator := store.NewQueryEvaluator(resolver)

	if bootstrap {
		if err := s.Bootstrap(ctx); err != nil {
			log.Fatalf("bootstrap: %v", err)
		}
		fmt.Println(colorize("bootstrapped collection", color.FgGreen))
		return
	}

	if assertPath != "" {
		if err := runAssertFile(ctx, engine, assertPath, prefixes); err != nil {
			log.Fatalf("assert: %v", err)
		}
		return
	}

	if queryStr != "" {
		runQuery(ctx, s, evaluator, queryStr, asOf, prefixes)
		return
	}

	if interactive {
		runInteractive(ctx, s, engine, evaluator, prefixes)
		return
	}

	flag.Usage()
}

// configureLogging matches the teacher's habit of wiring up the library's
// own level-gated text logger rather than introducing a framework.
func configureLogging(cfg config.Config) {
	logrus.SetLevel(cfg.LogLevel)
}

func connect(ctx context.Context, cfg config.Config) (*store.DatomStore, error) {
	wc := writeconcern.Majority()
	journal := true
	wc.Journal = &journal
	clientOpts := options.Client().ApplyURI(cfg.MongoURI).SetWriteConcern(wc)
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("mongo.Connect: %w", err)
	}
	coll := client.Database(cfg.MongoDB).Collection(cfg.Collection)
	return store.NewDatomStore(coll), nil
}

func parsePrefixes(s string) map[string]string {
	out := map[string]string{}
	if s == "" {
		return out
	}
	for _, pair := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		out[k] = v
	}
	return out
}

// runAssertFile reads "e a v" lines (whitespace-separated, value quoted
// with double quotes for string literals) and commits each line as its own
// transaction, in the teacher's line-oriented ".add" idiom.
func runAssertFile(ctx context.Context, engine *store.TransactionEngine, path string, prefixes map[string]string) error {
	var r *os.File
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}

	scanner := bufio.NewScanner(r)
	count := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, " ", 3)
		if len(parts) != 3 {
			return fmt.Errorf("line %q: expected \"e a v\"", line)
		}
		triple := store.Triple{E: parts[0], A: parts[1], V: parseValue(parts[2])}
		ops, err := engine.Assert(ctx, triple, prefixes)
		if err != nil {
			return fmt.Errorf("line %q: %w", line, err)
		}
		t, err := engine.Transact(ctx, ops)
		if err != nil {
			return fmt.Errorf("line %q: %w", line, err)
		}
		count++
		fmt.Printf("%s %s (t=%s)\n", colorize("asserted", color.FgGreen), line, t.Hex())
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	fmt.Printf("committed %d statements\n", count)
	return nil
}

func parseValue(s string) interface{} {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

// jsonClause is the CLI's wire format for one [e, a, v] where clause: each
// position is either a "?var" string, a ground URI/CURIE/literal, or a
// single-key predicate object like {"$gt": 25}.
type jsonClause [3]interface{}

type jsonQuerySpec struct {
	Where  []jsonClause `json:"where"`
	Select []string     `json:"select"`
}

func toQuerySpec(spec jsonQuerySpec, prefixes map[string]string) store.QuerySpec {
	out := store.QuerySpec{Select: spec.Select, Prefixes: prefixes}
	for _, jc := range spec.Where {
		var clause store.Clause
		for i, raw := range jc {
			clause[i] = toTerm(raw)
		}
		out.Where = append(out.Where, clause)
	}
	return out
}

func toTerm(raw interface{}) store.Term {
	switch v := raw.(type) {
	case string:
		if strings.HasPrefix(v, "?") {
			return store.Term{Kind: store.TermVar, Var: v}
		}
		return store.Term{Kind: store.TermGround, Ground: v}
	case map[string]interface{}:
		if varName, ok := v["var"].(string); ok {
			pred := map[string]interface{}{}
			for k, val := range v {
				if k != "var" {
					pred[k] = val
				}
			}
			return store.Term{Kind: store.TermProbe, Var: varName, Predicate: pred}
		}
		return store.Term{Kind: store.TermProbe, Var: "?_", Predicate: v}
	default:
		return store.Term{Kind: store.TermGround, Ground: v}
	}
}

func runQuery(ctx context.Context, s *store.DatomStore, evaluator *store.QueryEvaluator, queryStr, asOf string, prefixes map[string]string) {
	var spec jsonQuerySpec
	if err := json.Unmarshal([]byte(queryStr), &spec); err != nil {
		log.Fatalf("parse query: %v", err)
	}

	view, err := viewFor(ctx, s, asOf)
	if err != nil {
		log.Fatalf("as-of: %v", err)
	}

	start := time.Now()
	rows, err := evaluator.Query(ctx, view, toQuerySpec(spec, prefixes))
	elapsed := time.Since(start)
	if err != nil {
		log.Fatalf("query: %v", err)
	}
	printRows(rows)
	fmt.Printf("_%d rows (%.3fms)_\n", len(rows), float64(elapsed.Microseconds())/1000.0)
}

func viewFor(ctx context.Context, s *store.DatomStore, asOf string) (*store.AsOfView, error) {
	if asOf == "" {
		return store.AsOfTime(ctx, s, time.Now())
	}
	tau, err := time.Parse(time.RFC3339, asOf)
	if err != nil {
		return nil, fmt.Errorf("invalid -as-of instant: %w", err)
	}
	return store.AsOfTime(ctx, s, tau)
}

func printRows(rows []store.Binding) {
	if len(rows) == 0 {
		fmt.Println(colorize("empty result", color.FgYellow))
		return
	}
	var columns []string
	seen := map[string]bool{}
	for _, row := range rows {
		for k := range row {
			if !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
	}

	table := tablewriter.NewTable(os.Stdout)
	table.Header(columns)
	for _, row := range rows {
		cells := make([]string, len(columns))
		for i, col := range columns {
			cells[i] = fmt.Sprintf("%v", row[col])
		}
		table.Append(cells)
	}
	table.Render()
}

func runInteractive(ctx context.Context, s *store.DatomStore, engine *store.TransactionEngine, evaluator *store.QueryEvaluator, prefixes map[string]string) {
	fmt.Println("=== maggtomic interactive mode ===")
	fmt.Println("Commands:")
	fmt.Println("  .help             - Show help")
	fmt.Println("  .exit             - Exit")
	fmt.Println("  .add              - Start adding \"e a v\" statements")
	fmt.Println("  {\"where\": ...}    - Run a JSON query")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == ".exit":
			return
		case line == ".help":
			fmt.Println("Enter \"e a v\" statements via .add, or a JSON query object")
		case line == ".add":
			addInteractive(ctx, engine, scanner, prefixes)
		case strings.HasPrefix(line, "{"):
			view, err := store.AsOfTime(ctx, s, time.Now())
			if err != nil {
				fmt.Printf("as-of error: %v\n", err)
				continue
			}
			var spec jsonQuerySpec
			if err := json.Unmarshal([]byte(line), &spec); err != nil {
				fmt.Printf("parse error: %v\n", err)
				continue
			}
			rows, err := evaluator.Query(ctx, view, toQuerySpec(spec, prefixes))
			if err != nil {
				fmt.Printf("query error: %v\n", err)
				continue
			}
			printRows(rows)
		default:
			fmt.Println("Unknown command. Use .help for help.")
		}
	}
}

func addInteractive(ctx context.Context, engine *store.TransactionEngine, scanner *bufio.Scanner, prefixes map[string]string) {
	fmt.Println("Adding statements (empty line to finish):")
	var ops [][]store.Op
	for {
		fmt.Print("  e a v> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			break
		}
		parts := strings.SplitN(line, " ", 3)
		if len(parts) != 3 {
			fmt.Println("Expected: <entity> <attribute> <value>")
			continue
		}
		triple := store.Triple{E: parts[0], A: parts[1], V: parseValue(parts[2])}
		compiled, err := engine.Assert(ctx, triple, prefixes)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}
		ops = append(ops, compiled)
	}

	if len(ops) == 0 {
		fmt.Println("No data added")
		return
	}
	t, err := engine.Transact(ctx, ops...)
	if err != nil {
		fmt.Printf("Commit failed: %v\n", err)
		return
	}
	fmt.Printf("Committed transaction %s\n", t.Hex())
}

func colorize(s string, attr color.Attribute) string {
	return color.New(attr).Sprint(s)
}
