package k8s

// Contains the builder functions that construct Kubernetes objects
import (
	"fmt"
	"regexp"
	"strings"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
)

const (
	maxK8sNameLength                = 63
	defaultJobTTLSeconds            = int32(3600)
	engineContainerName             = "engine"
	runFilesVolumeName              = "run-files"
	workVolumeName                  = "work"
	paramsFileName                  = "params.json"
	paramsMountPath                 = "/meta/params.json"
	engineConfigFileName            = "engine.config"
	engineConfigMountPath           = "/meta/engine.config"
	workMountPath                   = "/workspace"
	jobPrefix                       = "wes-run-"
	filesSuffix                     = "-files"
	envRunIDName                    = "WES_RUN_ID"
	defaultAllowPrivilegeEscalation = false
	defaultRunAsUser                = int64(1000)
	defaultRunAsGroup               = int64(1000)
	labelAppKey                     = "app"
	labelComponentKey               = "component"
	labelRunIDKey                   = "run_id"
	labelAppValue                   = "wes-dispatch"
	labelComponentValue             = "workflow-run"
	capabilityDropAll               = "ALL"
)

var dnsLabelSanitizer = regexp.MustCompile(`[^a-z0-9-]+`)

func sanitizeDNS1123Label(value string) string {
	safe := strings.ToLower(value)
	safe = dnsLabelSanitizer.ReplaceAllString(safe, "-")
	safe = strings.Trim(safe, "-")
	if safe == "" {
		return "x"
	}
	return safe
}

func buildK8sName(runID, suffix string) string {
	base := jobPrefix + sanitizeDNS1123Label(runID)
	maxBase := maxK8sNameLength - len(suffix)
	if maxBase < 1 {
		maxBase = 1
	}
	if len(base) > maxBase {
		base = strings.Trim(base[:maxBase], "-")
	}
	name := base + suffix
	if len(name) > maxK8sNameLength {
		name = strings.Trim(name[:maxK8sNameLength], "-")
	}
	return name
}

func buildConfigMap(cfg *jobConfig) *corev1.ConfigMap {
	data := map[string]string{
		paramsFileName: cfg.paramsJSON,
	}
	if cfg.engineConfig != "" {
		data[engineConfigFileName] = cfg.engineConfig
	}
	return &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Name:      configMapName(cfg.runID),
			Namespace: cfg.namespace,
			Labels:    runLabels(cfg.runID),
		},
		Data: data,
	}
}

func buildJob(cfg *jobConfig) (*batchv1.Job, error) {
	if cfg.image == "" {
		return nil, fmt.Errorf("engine image is required")
	}
	if len(cfg.command) == 0 {
		return nil, fmt.Errorf("engine command is required")
	}
	podLabels := runLabels(cfg.runID)

	ttl := cfg.ttlSeconds
	if ttl <= 0 {
		ttl = defaultJobTTLSeconds
	}
	backoff := cfg.backoffLimit

	resources, err := buildResources(cfg)
	if err != nil {
		return nil, err
	}

	mounts := []corev1.VolumeMount{
		{
			Name:      runFilesVolumeName,
			MountPath: paramsMountPath,
			SubPath:   paramsFileName,
			ReadOnly:  true,
		},
		{
			Name:      workVolumeName,
			MountPath: workMountPath,
		},
	}
	if cfg.engineConfig != "" {
		mounts = append(mounts, corev1.VolumeMount{
			Name:      runFilesVolumeName,
			MountPath: engineConfigMountPath,
			SubPath:   engineConfigFileName,
			ReadOnly:  true,
		})
	}

	workingDir := cfg.workingDir
	if workingDir == "" {
		workingDir = workMountPath
	}

	return &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:      jobName(cfg.runID),
			Namespace: cfg.namespace,
			Labels:    podLabels,
		},
		Spec: batchv1.JobSpec{
			BackoffLimit:            &backoff,
			TTLSecondsAfterFinished: &ttl,
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels: podLabels,
				},
				Spec: corev1.PodSpec{
					RestartPolicy:      corev1.RestartPolicyNever,
					ServiceAccountName: cfg.serviceAccountName,
					Containers: []corev1.Container{
						{
							Name:                     engineContainerName,
							Image:                    cfg.image,
							ImagePullPolicy:          corev1.PullIfNotPresent,
							Command:                  buildContainerCommand(cfg.command),
							WorkingDir:               workingDir,
							Env:                      buildEnvVars(cfg),
							Resources:                resources,
							SecurityContext:          defaultSecurityContext(),
							TerminationMessagePolicy: corev1.TerminationMessageFallbackToLogsOnError,
							VolumeMounts:             mounts,
						},
					},
					Volumes: []corev1.Volume{
						{
							Name: runFilesVolumeName,
							VolumeSource: corev1.VolumeSource{
								ConfigMap: &corev1.ConfigMapVolumeSource{
									LocalObjectReference: corev1.LocalObjectReference{Name: configMapName(cfg.runID)},
								},
							},
						},
						{
							Name: workVolumeName,
							VolumeSource: corev1.VolumeSource{
								EmptyDir: &corev1.EmptyDirVolumeSource{},
							},
						},
					},
				},
			},
		},
	}, nil
}

func buildContainerCommand(command []string) []string {
	var out []string
	for _, part := range command {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func defaultSecurityContext() *corev1.SecurityContext {
	return &corev1.SecurityContext{
		AllowPrivilegeEscalation: boolPtr(defaultAllowPrivilegeEscalation),
		RunAsNonRoot:             boolPtr(true),
		RunAsUser:                int64Ptr(defaultRunAsUser),
		RunAsGroup:               int64Ptr(defaultRunAsGroup),
		Capabilities: &corev1.Capabilities{
			Drop: []corev1.Capability{
				capabilityDropAll,
			},
		},
		SeccompProfile: &corev1.SeccompProfile{
			Type: corev1.SeccompProfileTypeRuntimeDefault,
		},
	}
}

func boolPtr(value bool) *bool {
	return &value
}

func int64Ptr(value int64) *int64 {
	return &value
}

func buildEnvVars(cfg *jobConfig) []corev1.EnvVar {
	var env []corev1.EnvVar
	seen := map[string]bool{}
	env = append(env, corev1.EnvVar{
		Name:  envRunIDName,
		Value: cfg.runID,
	})
	seen[envRunIDName] = true
	for _, item := range cfg.defaultEnv {
		if item.Name == "" || seen[item.Name] {
			continue
		}
		seen[item.Name] = true
		env = append(env, corev1.EnvVar{
			Name:  item.Name,
			Value: item.Value,
		})
	}
	return env
}

func buildResources(cfg *jobConfig) (corev1.ResourceRequirements, error) {
	resources := corev1.ResourceRequirements{
		Requests: corev1.ResourceList{},
		Limits:   corev1.ResourceList{},
	}
	quantities := []struct {
		value string
		name  corev1.ResourceName
		list  corev1.ResourceList
		what  string
	}{
		{cfg.cpuRequest, corev1.ResourceCPU, resources.Requests, "cpu request"},
		{cfg.memoryRequest, corev1.ResourceMemory, resources.Requests, "memory request"},
		{cfg.cpuLimit, corev1.ResourceCPU, resources.Limits, "cpu limit"},
		{cfg.memoryLimit, corev1.ResourceMemory, resources.Limits, "memory limit"},
	}
	for _, q := range quantities {
		if q.value == "" {
			continue
		}
		quantity, err := resource.ParseQuantity(q.value)
		if err != nil {
			return corev1.ResourceRequirements{}, fmt.Errorf("parse %s: %w", q.what, err)
		}
		q.list[q.name] = quantity
	}
	if len(resources.Requests) == 0 {
		resources.Requests = nil
	}
	if len(resources.Limits) == 0 {
		resources.Limits = nil
	}
	return resources, nil
}

func jobName(runID string) string {
	return buildK8sName(runID, "")
}

func configMapName(runID string) string {
	return buildK8sName(runID, filesSuffix)
}

func runLabels(runID string) map[string]string {
	return map[string]string{
		labelAppKey:       labelAppValue,
		labelComponentKey: labelComponentValue,
		labelRunIDKey:     sanitizeDNS1123Label(runID),
	}
}

func runSelector(runID string) string {
	return labels.SelectorFromSet(labels.Set{labelRunIDKey: sanitizeDNS1123Label(runID)}).String()
}
