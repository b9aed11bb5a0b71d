// Package main 提供 chainnet 命令行入口
package main

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/multierr"

	"github.com/dep2p/go-chainnet"
	"github.com/dep2p/go-chainnet/config"
	"github.com/dep2p/go-chainnet/pkg/lib/log"
	"github.com/dep2p/go-chainnet/pkg/types"
)

var logger = log.Logger("chainnet/cmd")

// ═══════════════════════════════════════════════════════════════════════════
// 命令行参数
// ═══════════════════════════════════════════════════════════════════════════
//
//   命令行参数：运行时覆盖（「这次运行」想怎么跑）
//   JSON 配置文件：持久化配置（「这个节点」的固定配置）
//
// ═══════════════════════════════════════════════════════════════════════════
var (
	configFile  = flag.String("config", "", "配置文件路径")
	networkName = flag.String("network", "", "所属网络 (main/test/dev)")
	peerAddress = flag.String("peer-address", "", "本机通告地址 wss://host:port/<pubkey-hex>，为空时使用临时身份")
	listenAddr  = flag.String("listen", "", "WebSocket 监听地址，例如 0.0.0.0:8443")
	seedPeers   = flag.String("seeds", "", "额外种子节点（逗号分隔）")
	dataDir     = flag.String("data-dir", "", "数据目录，设置后持久化地址簿")
	metricsAddr = flag.String("metrics", "", "Prometheus 指标监听地址")

	logLevel = flag.String("log-level", "", "日志级别 (debug/info/warn/error)")
	logFile  = flag.String("log-file", "", "日志文件路径")

	printConfig = flag.Bool("print-config", false, "输出生效配置后退出")
	statsEvery  = flag.Duration("stats", time.Minute, "状态输出间隔，0 表示不输出")
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func run() (err error) {
	flag.Parse()

	cfg, err := buildConfig()
	if err != nil {
		return fmt.Errorf("配置错误: %w", err)
	}

	if *printConfig {
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	// 设置日志
	l, err := log.Setup(cfg.Log)
	if err != nil {
		return fmt.Errorf("日志配置错误: %w", err)
	}
	log.SetDefault(l)
	defer func() { err = multierr.Append(err, ignoreSyncErr(log.Sync())) }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("启动 chainnet 节点", "network", cfg.Network.ID.String(), "peerAddress", cfg.Network.PeerAddress)
	node, err := chainnet.Start(ctx, chainnet.WithConfig(cfg))
	if err != nil {
		return fmt.Errorf("启动失败: %w", err)
	}
	defer func() { err = multierr.Append(err, node.Close()) }()

	printNodeInfo(node)

	fmt.Println("节点已启动，按 Ctrl+C 退出")
	waitForSignal(node)
	fmt.Println("\n正在关闭节点...")
	return nil
}

// buildConfig 构建生效配置
//
// 优先级（从高到低）：命令行参数 > 环境变量 > 配置文件 > 默认值
func buildConfig() (*config.Config, error) {
	cfg := config.NewConfig()
	if *configFile != "" {
		loaded, err := config.LoadFile(*configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if *networkName != "" {
		var id types.NetworkID
		if err := id.UnmarshalText([]byte(*networkName)); err != nil {
			return nil, err
		}
		cfg.Network.ID = id
	}
	if *peerAddress != "" {
		cfg.Network.PeerAddress = *peerAddress
	}
	if *listenAddr != "" {
		cfg.Transport.ListenAddr = *listenAddr
	}
	if *seedPeers != "" {
		cfg.Network.SeedPeers = append(cfg.Network.SeedPeers, splitList(*seedPeers)...)
	}
	if *dataDir != "" {
		cfg.Storage.Enabled = true
		cfg.Storage.DataDir = *dataDir
	}
	if *metricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.ListenAddr = *metricsAddr
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *logFile != "" {
		cfg.Log.File = *logFile
	}

	if cfg.Network.PeerAddress == "" {
		addr, err := ephemeralAddress()
		if err != nil {
			return nil, err
		}
		cfg.Network.PeerAddress = addr.URI()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ephemeralAddress 生成一次性的仅出站身份
//
// dumb 地址不可被拨号，节点只能主动连接其他节点。
func ephemeralAddress() (types.PeerAddress, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return types.PeerAddress{}, fmt.Errorf("生成临时身份失败: %w", err)
	}
	pk, err := types.PublicKeyFromBytes(buf)
	if err != nil {
		return types.PeerAddress{}, err
	}
	return types.NewPeerAddress(types.ProtocolDumb, "", 0, types.ServiceNano, pk), nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ignoreSyncErr stderr/stdout 不支持 fsync，忽略由此产生的错误
func ignoreSyncErr(err error) error {
	if err == nil || strings.Contains(err.Error(), "invalid argument") ||
		strings.Contains(err.Error(), "inappropriate ioctl") {
		return nil
	}
	return err
}

// waitForSignal 等待退出信号，期间定期输出状态
func waitForSignal(node *chainnet.Node) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	var tick <-chan time.Time
	if *statsEvery > 0 {
		ticker := time.NewTicker(*statsEvery)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-signals:
			return
		case <-tick:
			logger.Info("节点状态",
				"peers", node.PeerCount(),
				"addresses", node.AddressCount(),
				"maintenance", node.NetworkState().String(),
				"inboundExchange", node.AllowInboundExchange())
		}
	}
}

// printNodeInfo 打印节点信息
func printNodeInfo(node *chainnet.Node) {
	cfg := node.Config()
	fmt.Println()
	fmt.Println("╔════════════════════════════════════════════════════════════════════════╗")
	fmt.Println("║                         chainnet node started                          ║")
	fmt.Println("╚════════════════════════════════════════════════════════════════════════╝")
	fmt.Printf("  网络:     %s\n", cfg.Network.ID)
	fmt.Printf("  地址:     %s\n", cfg.Network.PeerAddress)
	if addr := node.ListenAddr(); addr != "" {
		fmt.Printf("  监听:     %s%s\n", addr, cfg.Transport.Path)
	}
	if cfg.Metrics.Enabled {
		fmt.Printf("  指标:     http://%s%s\n", cfg.Metrics.ListenAddr, cfg.Metrics.Path)
	}
	fmt.Printf("  地址簿:   %d\n", node.AddressCount())
	fmt.Println()
}
