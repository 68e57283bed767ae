// fasguard-makebloom builds a benign-traffic Bloom filter from pcap
// savefiles, or merges two existing filters. The flag surface mirrors the
// sizing and selection parameters the filter records in its header.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/fasguard/fasguard-core/internal/bloombuild"
	"github.com/fasguard/fasguard-core/internal/bloomfilter"
	"github.com/fasguard/fasguard-core/internal/logging"
	"github.com/fasguard/fasguard-core/internal/pcapreader"
)

func main() {
	var (
		merge         bool
		threaded      bool
		probFA        float64
		numInsertions uint64
		ipProto       int
		portNum       int
		threadNum     int
		minDepth      int
		maxDepth      int
		outFile       string
		logLevel      string
	)
	flag.BoolVar(&merge, "m", false, "merge two Bloom filters into one")
	flag.BoolVar(&merge, "merge", false, "merge two Bloom filters into one")
	flag.BoolVar(&threaded, "t", false, "run the multithreaded build")
	flag.BoolVar(&threaded, "thread", false, "run the multithreaded build")
	flag.Float64Var(&probFA, "prob-fa", 0.00001, "desired probability of false alarm")
	flag.Uint64Var(&numInsertions, "n", 10, "maximum number of insertion strings")
	flag.Uint64Var(&numInsertions, "num-insertions", 10, "maximum number of insertion strings")
	flag.IntVar(&ipProto, "ip-proto", 6, "IP protocol number")
	flag.IntVar(&portNum, "port-num", 80, "TCP/UDP port number")
	flag.IntVar(&threadNum, "T", 2, "number of hasher threads")
	flag.IntVar(&threadNum, "thread-num", 2, "number of hasher threads")
	flag.IntVar(&minDepth, "min-depth", 4, "minimum ngram size")
	flag.IntVar(&maxDepth, "max-depth", 4, "maximum ngram size")
	flag.StringVar(&outFile, "o", "out.bloom", "output file name")
	flag.StringVar(&outFile, "out-file", "out.bloom", "output file name")
	flag.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flag.Parse()

	level, err := logging.ParseLogLevel(logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	logging.InitGlobalLogger(&logging.Config{
		Level:  level,
		Format: logging.TextFormat,
		Output: os.Stderr,
	})
	log := logging.GetGlobalLogger().WithComponent("makebloom")

	if merge {
		if err := runMerge(flag.Args(), outFile, log); err != nil {
			log.Errorf("%v", err)
			os.Exit(1)
		}
		return
	}

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "at least one pcap file must be specified")
		os.Exit(1)
	}

	params, err := bloomfilter.NewParams(numInsertions, probFA, ipProto, portNum, minDepth, maxDepth)
	if err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
	filter := bloomfilter.New(params)
	log.Info("sized filter", map[string]interface{}{
		"bit_length": params.BitLength,
		"num_hashes": params.NumHashes,
	})

	for _, path := range flag.Args() {
		src, err := pcapreader.Open(path)
		if err != nil {
			log.Errorf("%v", err)
			os.Exit(1)
		}

		buildErr := build(filter, src, minDepth, maxDepth, threaded, threadNum)
		src.Close()
		if buildErr != nil {
			log.Errorf("build from %s: %v", path, buildErr)
			os.Exit(1)
		}
		log.Infof("processed %s", path)
	}

	if err := filter.Flush(outFile); err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
	log.Info("wrote filter", map[string]interface{}{
		"path":            outFile,
		"bytes_processed": filter.Params().BytesProcessed,
	})
}

func build(filter *bloomfilter.Filter, src *pcapreader.Source, minDepth, maxDepth int, threaded bool, threadNum int) error {
	source := bloombuild.NewPcapSource(src)
	if threaded {
		return bloombuild.BuildThreaded(filter, source, minDepth, maxDepth, threadNum)
	}
	return bloombuild.BuildUnthreaded(filter, source, minDepth, maxDepth)
}

// runMerge ORs the second filter's bits into the first and writes the
// result to outFile. Both filters must agree on every shape parameter.
func runMerge(paths []string, outFile string, log *logging.Logger) error {
	if len(paths) != 2 {
		return fmt.Errorf("merge mode takes exactly two Bloom filter files, got %d", len(paths))
	}

	a, err := bloomfilter.Load(paths[0], true)
	if err != nil {
		return err
	}
	defer a.Close()
	b, err := bloomfilter.Load(paths[1], true)
	if err != nil {
		return err
	}
	defer b.Close()

	if err := a.Union(b); err != nil {
		return err
	}
	if err := a.Flush(outFile); err != nil {
		return err
	}
	log.Infof("merged %s and %s into %s", paths[0], paths[1], outFile)
	return nil
}
