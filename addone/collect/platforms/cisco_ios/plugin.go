package cisco_ios

import (
	"context"
	"fmt"
	"strings"

	"github.com/sshcollectorpro/l2collector/addone/collect"
	"github.com/sshcollectorpro/l2collector/pkg/facts"
)

// Plugin cisco_ios 平台采集插件
type Plugin struct {
	l2 *L2InterfacesFacts
}

// NewPlugin 使用内置参数规格创建插件
func NewPlugin() *Plugin {
	return &Plugin{l2: NewL2InterfacesFacts(nil)}
}

func (p *Plugin) Name() string { return "cisco_ios" }

func (p *Plugin) StorageDefaults() collect.StorageDefaults {
	return (&collect.DefaultPlugin{}).StorageDefaults()
}

// SystemCommands 内置采集命令
func (p *Plugin) SystemCommands() []string {
	return []string{GatherCommand}
}

// Parse 按命令分发；二层接口命令每个接口输出一行
func (p *Plugin) Parse(ctx collect.ParseContext, raw string) (collect.ParseOutput, error) {
	out := collect.ParseOutput{Platform: ctx.Platform, Command: ctx.Command, Raw: raw}
	if !isGatherCommand(ctx.Command) {
		return out, nil
	}

	items, err := p.l2.Assemble(raw)
	if err != nil {
		return out, err
	}
	base := collect.BaseRecord{DeviceIP: ctx.DeviceIP, Status: ctx.Status, RawStoreJSON: ctx.RawPaths.Marshal()}
	for _, item := range items {
		out.Rows = append(out.Rows, collect.FormattedRow{Table: L2InterfacesResource, Base: base, Data: item})
	}
	return out, nil
}

// Resources 支持的事实资源
func (p *Plugin) Resources() []string {
	return []string{L2InterfacesResource}
}

// PopulateFacts 分发到对应资源的采集器
func (p *Plugin) PopulateFacts(ctx context.Context, resource string, conn facts.Connection, out *facts.Facts, data string) error {
	switch resource {
	case L2InterfacesResource:
		return p.l2.PopulateFacts(ctx, conn, out, data)
	default:
		return fmt.Errorf("%w: %s on platform %s", collect.ErrResourceNotSupported, resource, p.Name())
	}
}

// isGatherCommand 兼容大小写与多余空白
func isGatherCommand(cmd string) bool {
	return strings.EqualFold(strings.Join(strings.Fields(cmd), " "), GatherCommand)
}

func init() { collect.Register("cisco_ios", NewPlugin()) }
