package main

// 引入采集平台插件，触发各平台的 init() 完成注册
import (
	_ "github.com/sshcollectorpro/l2collector/addone/collect/platforms/cisco_ios"
)
