package helmpkg

import "github.com/eksline/eksline/internal/config"

// PrometheusValues builds the values map for the kube-prometheus-stack
// release. Grafana is disabled in the stack because it is installed as
// a separate release with its own load balancer. Prometheus persists to
// the given storage class so metrics survive pod rescheduling; an empty
// class keeps the chart's emptyDir default.
func PrometheusValues(storageClass string) map[string]interface{} {
	spec := map[string]interface{}{
		"serviceMonitorSelectorNilUsesHelmValues": false,
	}
	if storageClass != "" {
		spec["storageSpec"] = map[string]interface{}{
			"volumeClaimTemplate": map[string]interface{}{
				"spec": map[string]interface{}{
					"storageClassName": storageClass,
					"accessModes":      []string{"ReadWriteOnce"},
					"resources": map[string]interface{}{
						"requests": map[string]interface{}{
							"storage": "20Gi",
						},
					},
				},
			},
		}
	}
	return map[string]interface{}{
		"grafana": map[string]interface{}{
			"enabled": false,
		},
		"prometheus": map[string]interface{}{
			"prometheusSpec": spec,
		},
	}
}

// GrafanaValues builds the values map for the Grafana release. The
// service is exposed through a LoadBalancer so the endpoint can be
// polled for a public hostname after install.
func GrafanaValues(cfg config.GrafanaConfig) map[string]interface{} {
	values := map[string]interface{}{
		"service": map[string]interface{}{
			"type": "LoadBalancer",
		},
	}
	if cfg.AdminPassword != "" {
		values["adminPassword"] = cfg.AdminPassword
	}
	return values
}
