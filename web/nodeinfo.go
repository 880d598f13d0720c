package web

import (
	"encoding/json"
	"log"

	"github.com/deemkeen/stegofed/util"
)

// NodeInfo20 represents the NodeInfo 2.0 schema
// See: https://nodeinfo.diaspora.software/schema.html
type NodeInfo20 struct {
	Version           string           `json:"version"`
	Software          NodeInfoSoftware `json:"software"`
	Protocols         []string         `json:"protocols"`
	Services          NodeInfoServices `json:"services"`
	OpenRegistrations bool             `json:"openRegistrations"`
	Usage             NodeInfoUsage    `json:"usage"`
	Metadata          NodeInfoMetadata `json:"metadata"`
}

type NodeInfoSoftware struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type NodeInfoServices struct {
	Inbound  []string `json:"inbound"`
	Outbound []string `json:"outbound"`
}

type NodeInfoUsage struct {
	Users      NodeInfoUsers `json:"users"`
	LocalPosts int           `json:"localPosts"`
}

type NodeInfoUsers struct {
	Total int `json:"total"`
}

type NodeInfoMetadata struct {
	NodeName        string `json:"nodeName"`
	NodeDescription string `json:"nodeDescription"`
}

// WellKnownNodeInfo represents the /.well-known/nodeinfo response
type WellKnownNodeInfo struct {
	Links []NodeInfoLink `json:"links"`
}

type NodeInfoLink struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

// GetNodeInfo20 returns the NodeInfo 2.0 document with live usage counts
func GetNodeInfo20(store Store, conf *util.AppConfig) []byte {
	totalUsers, err := store.CountAccounts()
	if err != nil {
		log.Printf("Failed to count accounts: %v", err)
	}
	localPosts, err := store.CountLocalPosts()
	if err != nil {
		log.Printf("Failed to count local posts: %v", err)
	}

	info := NodeInfo20{
		Version:           "2.0",
		Software:          NodeInfoSoftware{Name: util.Name, Version: util.GetVersion()},
		Protocols:         []string{"activitypub"},
		Services:          NodeInfoServices{Inbound: []string{}, Outbound: []string{"rss2.0"}},
		OpenRegistrations: !conf.Conf.Closed,
		Usage: NodeInfoUsage{
			Users:      NodeInfoUsers{Total: totalUsers},
			LocalPosts: localPosts,
		},
		Metadata: NodeInfoMetadata{NodeName: util.Name, NodeDescription: "An SSH-first federated link aggregator and microblog"},
	}

	buf, err := json.Marshal(info)
	if err != nil {
		log.Printf("Failed to marshal nodeinfo: %v", err)
		return []byte("{}")
	}
	return buf
}

// GetWellKnownNodeInfo returns the /.well-known/nodeinfo discovery document
func GetWellKnownNodeInfo(conf *util.AppConfig) []byte {
	wellKnown := WellKnownNodeInfo{
		Links: []NodeInfoLink{
			{
				Rel:  "http://nodeinfo.diaspora.software/ns/schema/2.0",
				Href: "https://" + conf.Conf.SslDomain + "/nodeinfo/2.0",
			},
		},
	}

	buf, err := json.Marshal(wellKnown)
	if err != nil {
		log.Printf("Failed to marshal well-known nodeinfo: %v", err)
		return []byte("{}")
	}
	return buf
}
