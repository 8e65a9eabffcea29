// @title           支付结算服务 API
// @version         1.0
// @description     支付单、网关下单查单关单与支付回调结算
// @BasePath  /api/v1
// @schemes   http https
package main

import (
	"github.com/golang-pay-settlement/cmd"
	_ "go.uber.org/automaxprocs"
)

func main() {
	cmd.Execute()
}
