// factparse 离线解析设备配置文本并输出事实 JSON
//
// 用法：
//
//	factparse -platform cisco_ios -file show_run.txt
//	cat show_run.txt | factparse
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	_ "github.com/sshcollectorpro/l2collector/addone/collect/platforms/cisco_ios"
	"github.com/sshcollectorpro/l2collector/internal/config"
	"github.com/sshcollectorpro/l2collector/internal/service"
	"github.com/sshcollectorpro/l2collector/internal/util"
)

func main() {
	platform := flag.String("platform", "cisco_ios", "设备平台")
	file := flag.String("file", "", "配置文本文件，留空读取标准输入")
	resources := flag.String("resources", "", "逗号分隔的资源列表，留空为平台全部资源")
	flag.Parse()

	if err := run(os.Stdout, *platform, *file, *resources); err != nil {
		fmt.Fprintf(os.Stderr, "factparse: %v\n", err)
		os.Exit(1)
	}
}

func run(w io.Writer, platform, file, resources string) error {
	var raw []byte
	var err error
	if file == "" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(file)
	}
	if err != nil {
		return err
	}

	req := service.ParseRequest{
		Platform: platform,
		Data:     util.NormalizeOutput(raw, util.LineFilter{Contains: []string{"--more--"}, CaseInsensitive: true}),
	}
	for _, r := range strings.Split(resources, ",") {
		if r = strings.TrimSpace(r); r != "" {
			req.Resources = append(req.Resources, r)
		}
	}

	svc := service.NewFactService(&config.Config{}, service.Deps{})
	defer svc.Stop()
	out, err := svc.Parse(context.Background(), req)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
