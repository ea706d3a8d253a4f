// simtest 连接一台设备（默认内置模拟器）执行事实采集并打印结果
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sshcollectorpro/l2collector/addone/collect"
	_ "github.com/sshcollectorpro/l2collector/addone/collect/platforms/cisco_ios"
	"github.com/sshcollectorpro/l2collector/pkg/facts"
	sshc "github.com/sshcollectorpro/l2collector/pkg/ssh"
	"github.com/sshcollectorpro/l2collector/simulate"
)

func main() {
	host := flag.String("host", "", "设备地址，留空时启动内置模拟器")
	port := flag.Int("port", 22, "SSH 端口")
	user := flag.String("user", "sw-access-01", "用户名（模拟器中即设备名）")
	password := flag.String("password", "nova", "密码")
	platform := flag.String("platform", "cisco_ios", "设备平台")
	simPath := flag.String("simulate", "simulate/simulate.yaml", "模拟器配置")
	flag.Parse()

	info := &sshc.ConnectionInfo{Host: *host, Port: *port, Username: *user, Password: *password}
	if info.Host == "" {
		sc, err := simulate.LoadConfig(*simPath)
		if err != nil {
			fail(err)
		}
		sc.Listen = "127.0.0.1:0"
		srv, err := simulate.Start(sc)
		if err != nil {
			fail(err)
		}
		defer srv.Stop()
		info.Host, info.Port = "127.0.0.1", srv.Addr().Port
	}

	plugin, ok := collect.Lookup(*platform)
	if !ok {
		fail(fmt.Errorf("unsupported platform %q", *platform))
	}

	client := sshc.NewClient(&sshc.Config{Timeout: 10 * time.Second, KeepAlive: 10 * time.Second})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := client.Connect(ctx, info); err != nil {
		fail(err)
	}
	defer client.Close()

	out := facts.New()
	for _, res := range plugin.Resources() {
		if err := plugin.PopulateFacts(ctx, res, client, out, ""); err != nil {
			fail(fmt.Errorf("%s: %w", res, err))
		}
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(out)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "simtest: %v\n", err)
	os.Exit(1)
}
