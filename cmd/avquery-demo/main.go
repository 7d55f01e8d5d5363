// Command avquery-demo wires the compiler, a query-calc node, and the
// order service together end to end over a small built-in dataset, the
// way cmd/datalog's REPL demonstrates the teacher's query engine.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/wbrown/avquery"
	"github.com/wbrown/avquery/internal/badgerindex"
	"github.com/wbrown/avquery/internal/events"
	"github.com/wbrown/avquery/internal/memindexer"
	"github.com/wbrown/avquery/orderservice"
	"github.com/wbrown/avquery/querycalc"
	"github.com/wbrown/avquery/simplequery"
)

func main() {
	var verbose bool
	var value float64
	var badgerPath string

	flag.BoolVar(&verbose, "verbose", false, "trace refresh/querycalc/orderservice events")
	flag.Float64Var(&value, "value", 2, "attribute value to select for the demo query {a: value}")
	flag.StringVar(&badgerPath, "badger", "", "publish order-result offsets to this Badger path instead of in-memory")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Demonstrates compiling a query, running it through a SimpleQueryCalc\n")
		fmt.Fprintf(os.Stderr, "node over a small in-memory indexer, then ordering and indexing the\n")
		fmt.Fprintf(os.Stderr, "result through the order service.\n\nOptions:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	var collector *events.Collector
	if verbose {
		collector = events.NewCollector(events.ConsoleHandler())
	} else {
		collector = events.NewCollector(nil)
	}

	idx := memindexer.New()
	const pathX avquery.PID = 1
	data := []float64{1, 2, 2, 3, 5}
	for i, v := range data {
		idx.AddElement(pathX, avquery.EID(i+1), avquery.ScalarKey(avquery.KeyTypeNumber, v))
	}
	collector.Add(events.Event{Name: events.RefreshStructureBegin, Start: time.Now()})

	term := simplequery.AV{Fields: []simplequery.AVField{{Attr: "a", Value: simplequery.Scalar{Value: value}}}}
	exec := simplequery.Compile(term)
	collector.Add(events.Event{Name: events.CompilerCompiled, Data: map[string]interface{}{"kind": exec.Kind().String()}})

	node := querycalc.NewSimpleQueryCalc(pathX, 1, idx)
	node.AddValue(100, avquery.KeyTypeNumber, avquery.ScalarKey(avquery.KeyTypeNumber, value))
	collector.Add(events.Event{Name: events.QueryCalcRegistered, Data: map[string]interface{}{"node": 1, "path": pathX}})

	matches := sortedEIDs(node.GetMatches())
	fmt.Printf("query {a: %v} matches: %v\n", value, matches)

	queue := orderservice.NewRefreshQueue()
	dom := orderservice.FuncDominated(func() (orderservice.CompInfo, bool) {
		return orderservice.StaticComparator{Compare: func(a, b avquery.EID) int {
			switch {
			case a < b:
				return -1
			case a > b:
				return 1
			default:
				return 0
			}
		}}, true
	})
	svc := orderservice.NewOrderService(dom, queue)
	queue.Drain()
	svc.AddMatches(node.GetMatches())
	collector.Add(events.Event{Name: events.OrderServiceRefreshed, Data: map[string]interface{}{"tree.size": svc.Tree().Len()}})

	var secondary orderservice.SecondaryIndexer
	if badgerPath != "" {
		store, err := badgerindex.Open(badgerPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open badger offset store: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()
		secondary = store
	} else {
		secondary = orderservice.NewMapSecondaryIndexer()
	}

	indexResult := orderservice.NewIndexOrderResult(svc, secondary, false)
	indexResult.SetOrderedData(node.GetMatches())
	indexResult.SetToIndexData(node.GetMatches())
	svc.Notify()

	keys, _, hasAttrs := indexResult.GetValues(matches)
	for i, eid := range matches {
		if hasAttrs[i] {
			fmt.Printf("  eid %v -> offset %v\n", eid, keys[i])
		}
	}
}

func sortedEIDs(eids []avquery.EID) []avquery.EID {
	out := append([]avquery.EID{}, eids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
