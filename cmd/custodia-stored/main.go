package main

import (
	"flag"
	"fmt"
	"net"
	"os"

	"google.golang.org/grpc"

	"github.com/custodia-sh/custodia/store"
	"github.com/custodia-sh/custodia/store/grpcstore"
	"github.com/custodia-sh/custodia/store/localstore"
	"github.com/custodia-sh/custodia/store/memstore"
)

func main() {
	fs := flag.NewFlagSet("custodia-stored", flag.ExitOnError)
	listen := fs.String("listen", "127.0.0.1:7700", "listen address")
	backend := fs.String("backend", "localfs", "store backend (mem or localfs)")
	dir := fs.String("dir", "", "data directory for the localfs backend")
	_ = fs.Parse(os.Args[1:])

	var st store.Store
	switch *backend {
	case "mem":
		st = memstore.New()
	case "localfs":
		if *dir == "" {
			fmt.Fprintln(os.Stderr, "missing --dir for localfs backend")
			os.Exit(2)
		}
		var err error
		st, err = localstore.Open(*dir)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown backend %q\n", *backend)
		os.Exit(2)
	}

	lis, err := net.Listen("tcp", *listen)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer lis.Close()

	s := grpc.NewServer()
	grpcstore.RegisterAccountStoreServer(s, &grpcstore.Server{Store: st})

	fmt.Fprintf(os.Stderr, "custodia-stored listening on %s (backend=%s)\n", lis.Addr().String(), *backend)
	if err := s.Serve(lis); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
