// Copyright 2024 The xline-operator Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	apiextensionsclientset "k8s.io/apiextensions-apiserver/pkg/client/clientset/versioned"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"

	"github.com/xline-kv/xline-operator/pkg/xline/operator"
	"github.com/xline-kv/xline-operator/pkg/xline/schema"
	"github.com/xline-kv/xline-operator/pkg/xline/supervisor"
	"github.com/xline-kv/xline-operator/pkg/xline/version"
)

func main() {
	a := kingpin.New("xline-operator", "Cluster-wide controller materializing XlineCluster objects and supervising member liveness.")

	var (
		kubeconfig        = a.Flag("kubeconfig", "Path to a kubeconfig file; omit to use in-cluster config.").Default(defaultKubeconfigPath()).String()
		namespace         = a.Flag("namespace", "Restrict the controller's watch and cache to this namespace; omit to watch cluster-wide.").String()
		dnsSuffix         = a.Flag("dns-suffix", "Cluster DNS suffix used when materializing peer addresses.").Default("cluster.local").String()
		schemaVersion     = a.Flag("schema-version", "Schema version label this operator build understands.").Default("v1alpha1").String()
		createCRD         = a.Flag("create-crd", "Allow the operator to install the XlineCluster CRD itself if missing.").Default("false").Bool()
		autoMigration     = a.Flag("auto-migration", "Allow the operator to advance the CRD's storage version once no live instances use the old one.").Default("false").Bool()
		backupImage       = a.Flag("backup-image", "Image used for the scheduled backup CronJob.").Default("curlimages/curl").String()
		heartbeatPeriod   = a.Flag("heartbeat-period", "Expected sidecar heartbeat cadence; statuses older than this are rejected.").Default("5s").Duration()
		unreachableThresh = a.Flag("unreachable-threshold", "Consecutive below-majority misses before the supervisor gives up on a member.").Default("3").Int()
		listenAddr        = a.Flag("listen-addr", "Address the operator's HTTP surface (monitor/metrics/healthz) listens on.").Default(":8080").String()
		logLevel          = a.Flag("log.level", "debug, info, warn or error.").Default("info").Enum("debug", "info", "warn", "error")
	)
	kingpin.MustParse(a.Parse(os.Args[1:]))

	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)
	logger = levelFilter(logger, *logLevel)

	cfg, err := clientcmd.BuildConfigFromFlags("", *kubeconfig)
	if err != nil {
		level.Error(logger).Log("msg", "building kubeconfig failed", "err", err)
		os.Exit(1)
	}

	apiext, err := apiextensionsclientset.NewForConfig(cfg)
	if err != nil {
		level.Error(logger).Log("msg", "building apiextensions client failed", "err", err)
		os.Exit(1)
	}
	dyn, err := dynamic.NewForConfig(cfg)
	if err != nil {
		level.Error(logger).Log("msg", "building dynamic client failed", "err", err)
		os.Exit(1)
	}

	schemaMgr := schema.New(apiext, dyn, schema.Config{CreateCRD: *createCRD, AutoMigration: *autoMigration}, logger)
	if err := schemaMgr.Ensure(context.Background(), version.MustParse(*schemaVersion)); err != nil {
		level.Error(logger).Log("msg", "ensuring CRD schema failed", "err", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	metrics := operator.NewMetrics(registry)

	host, err := operator.NewHost(cfg, *namespace, *dnsSuffix, *schemaVersion, *backupImage, metrics, logger)
	if err != nil {
		level.Error(logger).Log("msg", "building controller host failed", "err", err)
		os.Exit(1)
	}

	lookup := operator.NewClusterLookup(host.Manager().GetClient(), *namespace)
	sup := supervisor.New(lookup, lookup, supervisor.Config{
		HeartbeatPeriod:   *heartbeatPeriod,
		UnreachableThresh: *unreachableThresh,
	}, logger)

	queue := operator.NewHeartbeatQueue()
	srv := operator.NewServer(queue.In(), registry, logger)

	var g run.Group

	{
		ctx, cancel := context.WithCancel(context.Background())
		g.Add(func() error {
			return host.Run(ctx)
		}, func(error) {
			cancel()
		})
	}

	{
		ctx, cancel := context.WithCancel(context.Background())
		g.Add(func() error {
			sup.Run(ctx, queue.Out())
			return nil
		}, func(error) {
			cancel()
		})
	}

	{
		httpServer := &http.Server{Addr: *listenAddr, Handler: srv.Mux()}
		g.Add(func() error {
			level.Info(logger).Log("msg", "operator HTTP surface listening", "addr", httpServer.Addr)
			return httpServer.ListenAndServe()
		}, func(error) {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = httpServer.Shutdown(ctx)
		})
	}

	{
		term := make(chan os.Signal, 1)
		cancel := make(chan struct{})
		signal.Notify(term, os.Interrupt, syscall.SIGTERM)
		g.Add(func() error {
			select {
			case <-term:
				level.Info(logger).Log("msg", "received shutdown signal")
			case <-cancel:
			}
			return nil
		}, func(error) {
			close(cancel)
		})
	}

	if err := g.Run(); err != nil {
		level.Error(logger).Log("msg", "exit with error", "err", err)
		os.Exit(1)
	}
}

func levelFilter(logger log.Logger, lvl string) log.Logger {
	switch lvl {
	case "debug":
		return level.NewFilter(logger, level.AllowDebug())
	case "warn":
		return level.NewFilter(logger, level.AllowWarn())
	case "error":
		return level.NewFilter(logger, level.AllowError())
	default:
		return level.NewFilter(logger, level.AllowInfo())
	}
}

func defaultKubeconfigPath() string {
	if home := homedir.HomeDir(); home != "" {
		return filepath.Join(home, ".kube", "config")
	}
	return ""
}
