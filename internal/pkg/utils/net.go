package utils

import (
	"fmt"
	"net"
)

// GetLocalIP 返回本机对外通信使用的 IPv4 地址（用于构造 Kafka client.id 等实例标识）。
// udp Dial 不会真正发包，只是让内核选路。
func GetLocalIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", fmt.Errorf("failed to detect local ip: %w", err)
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "", fmt.Errorf("unexpected local addr type %T", conn.LocalAddr())
	}
	return addr.IP.String(), nil
}
