// internal/pkg/nacos/client.go
package nacos

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nacos-group/nacos-sdk-go/v2/clients"
	"github.com/nacos-group/nacos-sdk-go/v2/clients/naming_client"
	"github.com/nacos-group/nacos-sdk-go/v2/common/constant"
	"github.com/nacos-group/nacos-sdk-go/v2/vo"
	zlog "github.com/rs/zerolog/log"
)

const defaultGroup = "DEFAULT_GROUP"

// Client 封装了 Nacos 命名客户端
type Client struct {
	namingClient naming_client.INamingClient
	groupName    string
}

// ParseServerConfigs 解析 "ip1:port1,ip2:port2" 形式的地址
func ParseServerConfigs(addrs string) ([]constant.ServerConfig, error) {
	var serverConfigs []constant.ServerConfig
	for _, addr := range strings.Split(addrs, ",") {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		host, portStr, ok := strings.Cut(addr, ":")
		if !ok || host == "" {
			return nil, fmt.Errorf("invalid nacos address format: %s", addr)
		}
		port, err := strconv.ParseUint(portStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid port in nacos address: %s", portStr)
		}
		serverConfigs = append(serverConfigs, *constant.NewServerConfig(host, port))
	}
	if len(serverConfigs) == 0 {
		return nil, fmt.Errorf("no nacos address configured")
	}
	return serverConfigs, nil
}

// NewNacosClient 创建并返回一个新的 Nacos 客户端
func NewNacosClient(addrs, namespaceID, groupName string) (*Client, error) {
	serverConfigs, err := ParseServerConfigs(addrs)
	if err != nil {
		return nil, err
	}
	if namespaceID == "" {
		zlog.Warn().Msg("NACOS_NAMESPACE is not set, using default public namespace")
	}
	if groupName == "" {
		groupName = defaultGroup
	}

	clientConfig := *constant.NewClientConfig(
		constant.WithNotLoadCacheAtStart(true),
		constant.WithLogDir("/tmp/nacos/log"),
		constant.WithCacheDir("/tmp/nacos/cache"),
		constant.WithLogLevel("warn"),
		constant.WithNamespaceId(namespaceID),
	)

	namingClient, err := clients.NewNamingClient(vo.NacosClientParam{
		ClientConfig:  &clientConfig,
		ServerConfigs: serverConfigs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create nacos naming client: %w", err)
	}

	zlog.Info().Str("addrs", addrs).Str("group", groupName).Msg("Connected to Nacos")
	return &Client{namingClient: namingClient, groupName: groupName}, nil
}

// RegisterServiceInstance 注册一个临时实例，心跳断开后会自动摘除
func (c *Client) RegisterServiceInstance(serviceName, ip string, port int) error {
	success, err := c.namingClient.RegisterInstance(vo.RegisterInstanceParam{
		Ip:          ip,
		Port:        uint64(port),
		ServiceName: serviceName,
		Weight:      10,
		Enable:      true,
		Healthy:     true,
		Ephemeral:   true,
		GroupName:   c.groupName,
	})
	if err != nil {
		return fmt.Errorf("failed to register service with nacos: %w", err)
	}
	if !success {
		return fmt.Errorf("nacos registration was not successful for service: %s", serviceName)
	}
	zlog.Info().Str("service", serviceName).Str("ip", ip).Int("port", port).Msg("Service registered to Nacos")
	return nil
}

// DeregisterServiceInstance 从 Nacos 注销一个服务实例
func (c *Client) DeregisterServiceInstance(serviceName, ip string, port int) error {
	_, err := c.namingClient.DeregisterInstance(vo.DeregisterInstanceParam{
		Ip:          ip,
		Port:        uint64(port),
		ServiceName: serviceName,
		Ephemeral:   true,
		GroupName:   c.groupName,
	})
	if err != nil {
		return fmt.Errorf("failed to deregister service with nacos: %w", err)
	}
	zlog.Info().Str("service", serviceName).Msg("Service deregistered from Nacos")
	return nil
}

func (c *Client) Close() {
	if c.namingClient != nil {
		c.namingClient.CloseClient()
	}
}
