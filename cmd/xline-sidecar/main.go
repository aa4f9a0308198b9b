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
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/oklog/run"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"

	"github.com/xline-kv/xline-operator/pkg/xline/backup"
	"github.com/xline-kv/xline-operator/pkg/xline/member"
	"github.com/xline-kv/xline-operator/pkg/xline/process"
	"github.com/xline-kv/xline-operator/pkg/xline/registry"
	"github.com/xline-kv/xline-operator/pkg/xline/sidecar"
	"github.com/xline-kv/xline-operator/pkg/xline/xclient"
)

const dataDir = "/var/lib/xline/data"

func main() {
	a := kingpin.New("xline-sidecar", "Per-pod sidecar driving an xline process's lifecycle, membership and backups.")

	var (
		name              = a.Flag("name", "This member's name; must appear in --init-members.").Required().String()
		clusterName       = a.Flag("cluster-name", "Name of the cluster this member belongs to.").Required().String()
		initMembersRaw    = a.Flag("init-members", "Bootstrap member set, name=host,name=host,...").Required().String()
		managedPortRaw    = a.Flag("managed-port", "Port the xline process listens on.").Required().String()
		sidecarPortRaw    = a.Flag("sidecar-port", "Port this sidecar's HTTP surface listens on.").Required().String()
		backendRaw        = a.Flag("backend", "local | in-container,pod=...,container=...,namespace=...").Required().String()
		reconcileInterval = a.Flag("reconcile-interval", "Reconcile tick period.").Default("10s").Duration()
		backupRaw         = a.Flag("backup", "s3:<bucket> | pv:<path>; omit to disable backups.").String()
		monitorAddr       = a.Flag("monitor-addr", "host:port of the operator's /monitor endpoint; omit to disable heartbeats.").String()
		heartbeatInterval = a.Flag("heartbeat-interval", "Heartbeat post period.").Default("5s").Duration()
		registryRaw       = a.Flag("registry", "sts:<name>:<namespace> | http:<addr>").Required().String()
		dnsSuffix         = a.Flag("dns-suffix", "Cluster DNS suffix used to resolve StatefulSet-derived peer names.").Default("cluster.local").String()
		logLevel          = a.Flag("log.level", "debug, info, warn or error.").Default("info").Enum("debug", "info", "warn", "error")
	)
	kingpin.MustParse(a.Parse(os.Args[1:]))

	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)
	logger = levelFilter(logger, *logLevel)

	if err := run1(logger, runArgs{
		name: *name, clusterName: *clusterName, initMembersRaw: *initMembersRaw,
		managedPortRaw: *managedPortRaw, sidecarPortRaw: *sidecarPortRaw, backendRaw: *backendRaw,
		reconcileInterval: *reconcileInterval, backupRaw: *backupRaw, monitorAddr: *monitorAddr,
		heartbeatInterval: *heartbeatInterval, registryRaw: *registryRaw, dnsSuffix: *dnsSuffix,
	}); err != nil {
		level.Error(logger).Log("msg", "configuration error", "err", err)
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

type runArgs struct {
	name              string
	clusterName       string
	initMembersRaw    string
	managedPortRaw    string
	sidecarPortRaw    string
	backendRaw        string
	reconcileInterval time.Duration
	backupRaw         string
	monitorAddr       string
	heartbeatInterval time.Duration
	registryRaw       string
	dnsSuffix         string
}

func run1(logger log.Logger, a runArgs) error {
	initMembers, err := sidecar.ParseInitMembers(a.initMembersRaw)
	if err != nil {
		return err
	}
	managedPort, err := sidecar.ParsePort(a.managedPortRaw)
	if err != nil {
		return err
	}
	sidecarPort, err := sidecar.ParsePort(a.sidecarPortRaw)
	if err != nil {
		return err
	}
	cfg, err := member.NewConfig(a.name, a.clusterName, initMembers, managedPort, sidecarPort)
	if err != nil {
		return err
	}

	backend, err := sidecar.ParseBackend(a.backendRaw)
	if err != nil {
		return err
	}
	reg, err := buildRegistry(a.registryRaw, a.clusterName, a.dnsSuffix)
	if err != nil {
		return err
	}

	var bp backup.Provider
	backupDir := ""
	if a.backupRaw != "" {
		bp, backupDir, err = buildBackupProvider(a.backupRaw)
		if err != nil {
			return err
		}
	}

	inner, err := buildProcessHandle(backend)
	if err != nil {
		return err
	}

	selfAddr := initMembers[a.name] + ":" + a.managedPortRaw
	mh := member.Open(a.name, selfAddr, dataDir, bp, inner, xclient.EtcdDialer{}, logger)

	metricsReg := prometheus.NewRegistry()
	metrics := sidecar.NewMetrics(metricsReg)
	payload := &sidecar.PayloadStore{}
	peers := sidecar.NewPeerClient(sidecar.DefaultHealthCheckTimeout)

	reconciler := sidecar.NewReconciler(cfg, reg, mh, peers, payload, metrics, logger).WithInterval(a.reconcileInterval)
	srv := sidecar.NewServer(mh, payload, dataDir, backupDir, logger)

	var g run.Group

	{
		ctx, cancel := context.WithCancel(context.Background())
		g.Add(func() error {
			return reconciler.Run(ctx)
		}, func(error) {
			cancel()
		})
	}

	if a.monitorAddr != "" {
		reporter := sidecar.NewHeartbeatReporter(cfg, reg, "http://"+a.monitorAddr+"/monitor", a.heartbeatInterval, logger)
		ctx, cancel := context.WithCancel(context.Background())
		g.Add(func() error {
			return reporter.Run(ctx)
		}, func(error) {
			cancel()
		})
	}

	{
		mux := srv.Mux()
		mux.Handle("/metrics", promhttp.HandlerFor(metricsReg, promhttp.HandlerOpts{}))
		httpServer := &http.Server{Addr: ":" + a.sidecarPortRaw, Handler: mux}
		g.Add(func() error {
			level.Info(logger).Log("msg", "sidecar HTTP surface listening", "addr", httpServer.Addr)
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

	return g.Run()
}

func buildRegistry(raw, clusterName, dnsSuffix string) (registry.Registry, error) {
	spec, err := sidecar.ParseRegistry(raw)
	if err != nil {
		return nil, err
	}
	switch spec.Kind {
	case sidecar.RegistrySTS:
		cfg, err := rest.InClusterConfig()
		if err != nil {
			return nil, err
		}
		client, err := kubernetes.NewForConfig(cfg)
		if err != nil {
			return nil, err
		}
		return registry.NewWorkload(client, spec.Namespace, spec.StatefulSet, spec.StatefulSet, dnsSuffix), nil
	case sidecar.RegistryHTTP:
		return registry.NewHTTP(spec.Addr, clusterName), nil
	default:
		return nil, errors.Errorf("unsupported registry kind %q", spec.Kind)
	}
}

func buildBackupProvider(raw string) (backup.Provider, string, error) {
	spec, err := sidecar.ParseBackup(raw)
	if err != nil {
		return nil, "", err
	}
	switch spec.Kind {
	case sidecar.BackupPV:
		return backup.NewFSProvider(spec.Path), spec.Path, nil
	case sidecar.BackupS3:
		// Credentials and region come from the environment, following the
		// default AWS SDK resolution chain; no CLI flags are added for them.
		awsCfg, err := config.LoadDefaultConfig(context.Background())
		if err != nil {
			return nil, "", errors.Wrap(err, "--backup=s3")
		}
		cacheDir := dataDir + "/backup-cache"
		return backup.NewS3Provider(s3.NewFromConfig(awsCfg), spec.Bucket, cacheDir), cacheDir, nil
	default:
		return nil, "", errors.Errorf("unsupported backup kind %q", spec.Kind)
	}
}

func buildProcessHandle(spec sidecar.BackendSpec) (process.Handle, error) {
	switch spec.Kind {
	case sidecar.BackendLocal:
		return process.NewLocal("xline"), nil
	case sidecar.BackendInContainer:
		cfg, err := rest.InClusterConfig()
		if err != nil {
			return nil, err
		}
		client, err := kubernetes.NewForConfig(cfg)
		if err != nil {
			return nil, err
		}
		return process.NewInContainer(client, cfg, spec.Namespace, spec.Pod, spec.Container, []string{"xline"}), nil
	default:
		return nil, errors.Errorf("unsupported backend kind %q", spec.Kind)
	}
}
