package k8s_service

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gosovereign/internal/services/hosting"

	"go.uber.org/zap"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/runtime/serializer/yaml"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/discovery/cached/memory"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/restmapper"
	"k8s.io/client-go/tools/clientcmd"
)

// 호스팅 티어 스토어의 워크로드 이름. 네임스페이스는 스토어마다 다릅니다.
const (
	workloadName   = "storefront"
	envConfigName  = "storefront-env"
	hostAnnotation = "gosovereign.store/host"
)

var dns1123Regex = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?$`)

// Policy:
// K8sService 는 hosting.Provider 구현체입니다. 스토어/유저 서비스에 의존하지 않고,
// DB 상태 전이는 deploy_service 가 담당합니다.
type K8sService struct {
	dynamicClient dynamic.Interface
	mapper        meta.RESTMapper
	opts          Options
	logger        *zap.Logger
}

var _ hosting.Provider = (*K8sService)(nil)

type Options struct {
	TokenPath   string // 마운트된 서비스어카운트 토큰. 같은 디렉터리의 ca.crt 를 씁니다.
	ManifestDir string // 예: yaml-data/store-app
	Image       string
}

func NewK8sService(opts Options, logger *zap.Logger) (*K8sService, error) {
	var config *rest.Config
	var err error

	// 1. 마운트된 토큰이 있으면 그것으로 Config 생성
	if opts.TokenPath != "" {
		if _, errStat := os.Stat(opts.TokenPath); errStat == nil {
			// API 서버 주소 설정 (기본값: 10.43.0.1)
			host := os.Getenv("KUBERNETES_SERVICE_HOST")
			if host == "" {
				host = "10.43.0.1"
			}
			port := os.Getenv("KUBERNETES_SERVICE_PORT")
			if port == "" {
				port = "443"
			}

			token, errRead := os.ReadFile(opts.TokenPath)
			if errRead == nil {
				config = &rest.Config{
					Host: "https://" + net.JoinHostPort(host, port),
					TLSClientConfig: rest.TLSClientConfig{
						CAFile: filepath.Join(filepath.Dir(opts.TokenPath), "ca.crt"),
					},
					BearerToken: strings.TrimSpace(string(token)),
				}
				logger.Info("using mounted k8s token", zap.String("path", opts.TokenPath), zap.String("host", config.Host))
			} else {
				logger.Warn("failed to read k8s token", zap.String("path", opts.TokenPath), zap.Error(errRead))
			}
		}
	}

	// 2. 없으면 InCluster -> kubeconfig 순서로 시도
	if config == nil {
		config, err = rest.InClusterConfig()
		if err != nil {
			loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
			configOverrides := &clientcmd.ConfigOverrides{}
			kubeConfig := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, configOverrides)
			config, err = kubeConfig.ClientConfig()
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get k8s config: %w", err)
	}

	dynClient, err := dynamic.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create dynamic client: %w", err)
	}

	// GVR 매핑용 Discovery 기반 mapper
	dc, err := discovery.NewDiscoveryClientForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create discovery client: %w", err)
	}
	mapper := restmapper.NewDeferredDiscoveryRESTMapper(memory.NewMemCacheClient(dc))

	return newWithClient(dynClient, mapper, opts, logger), nil
}

func newWithClient(client dynamic.Interface, mapper meta.RESTMapper, opts Options, logger *zap.Logger) *K8sService {
	return &K8sService{dynamicClient: client, mapper: mapper, opts: opts, logger: logger}
}

func (s *K8sService) CheckConnectivity(ctx context.Context) (string, error) {
	gvr, err := s.mapper.ResourceFor(schema.GroupVersionResource{Resource: "namespaces"})
	if err != nil {
		return "unhealthy", err
	}
	_, err = s.dynamicClient.Resource(gvr).List(ctx, metav1.ListOptions{Limit: 1})
	if err != nil {
		return "unhealthy", err
	}
	return "healthy", nil
}

// Namespace 스토어별 네임스페이스 이름
func Namespace(subdomain string) string {
	return "store-" + subdomain
}

// checkInjection 템플릿에 그대로 들어가는 값만 검사합니다. 환경 변수는 ConfigMap 으로 따로 넣습니다.
func (s *K8sService) checkInjection(namespace, host, image, manifestDir string) error {
	if namespace == "" || host == "" || image == "" || manifestDir == "" {
		return fmt.Errorf("invalid parameters: empty values not allowed (필수 파라미터 누락)")
	}
	if len(namespace) > 63 || !dns1123Regex.MatchString(namespace) {
		return fmt.Errorf("invalid namespace format: %s (must be DNS-1123 compliant)", namespace)
	}

	// 알파벳, 숫자, '.', '-' 만 허용
	domainRegex := regexp.MustCompile(`^[a-z0-9.-]+$`)
	if !domainRegex.MatchString(host) {
		return fmt.Errorf("invalid host format: %s (contains invalid characters)", host)
	}

	imageRegex := regexp.MustCompile(`^[a-zA-Z0-9./:@_-]+$`)
	if !imageRegex.MatchString(image) {
		return fmt.Errorf("invalid image reference: %s", image)
	}

	// Path Traversal 체크
	cleanDir := filepath.Clean(manifestDir)
	if strings.Contains(cleanDir, "..") || strings.HasPrefix(cleanDir, "/") || strings.HasPrefix(cleanDir, "\\") {
		return fmt.Errorf("invalid manifest directory: %s", manifestDir)
	}
	return nil
}

// CreatedResource holds metadata for tracking created objects
type CreatedResource struct {
	Group     string
	Version   string
	Kind      string
	Name      string
	Namespace string
	UID       types.UID
}

// Deploy 는 store-init(네임스페이스) -> env ConfigMap -> store-app 순서로 생성합니다.
// 중간에 실패하면 이번 호출에서 만든 리소스를 역순으로 삭제합니다.
func (s *K8sService) Deploy(ctx context.Context, req hosting.Request) (*hosting.Result, error) {
	namespace := Namespace(req.Subdomain)
	manifestDir := s.opts.ManifestDir

	if err := s.checkInjection(namespace, req.Host, s.opts.Image, manifestDir); err != nil {
		return nil, err
	}

	var success bool
	var allCreated []CreatedResource

	defer func() {
		if !success {
			s.logger.Warn("hosted deploy failed, rolling back", zap.String("namespace", namespace), zap.Int("resources", len(allCreated)))
			// 생성의 역순으로 삭제
			for i := len(allCreated) - 1; i >= 0; i-- {
				res := allCreated[i]
				if errDel := s.deleteResource(context.WithoutCancel(ctx), res); errDel != nil {
					s.logger.Error("rollback delete failed",
						zap.String("kind", res.Kind),
						zap.String("namespace", res.Namespace),
						zap.String("name", res.Name),
						zap.Error(errDel),
					)
				}
			}
		}
	}()

	replacements := map[string]string{
		"{{NAMESPACE}}":  namespace,
		"{{NAME}}":       workloadName,
		"{{ENV_CONFIG}}": envConfigName,
		"{{IMAGE}}":      s.opts.Image,
		"{{HOST}}":       req.Host,
	}

	// 1. 네임스페이스 - 이미 존재하면 무시(Skip)
	initDir := filepath.Join(filepath.Dir(manifestDir), "store-init")
	initCreated, err := s.applyManifests(ctx, initDir, replacements, namespace, true)
	allCreated = append(allCreated, initCreated...)
	if err != nil {
		return nil, fmt.Errorf("failed to apply store-init manifests: %w", err)
	}

	// 2. 환경 변수 ConfigMap (값은 템플릿 치환을 거치지 않음)
	cm, err := s.applyEnvConfig(ctx, namespace, req.Env)
	if cm != nil {
		allCreated = append(allCreated, *cm)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to apply env config: %w", err)
	}

	// 3. Deployment / Service / Ingress
	appCreated, err := s.applyManifests(ctx, manifestDir, replacements, namespace, false)
	allCreated = append(allCreated, appCreated...)
	if err != nil {
		return nil, fmt.Errorf("failed to apply store-app manifests: %w", err)
	}

	success = true
	s.logger.Info("hosted store deployed", zap.String("namespace", namespace), zap.Int("resources", len(allCreated)))

	return &hosting.Result{
		ProjectID:    namespace,
		DeploymentID: namespace + "/" + workloadName,
		URL:          "https://" + req.Host,
	}, nil
}

func (s *K8sService) applyEnvConfig(ctx context.Context, namespace string, env map[string]string) (*CreatedResource, error) {
	data := make(map[string]interface{}, len(env))
	for k, v := range env {
		data[k] = v
	}

	obj := &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": "v1",
		"kind":       "ConfigMap",
		"metadata": map[string]interface{}{
			"name":      envConfigName,
			"namespace": namespace,
		},
		"data": data,
	}}

	gvr := schema.GroupVersionResource{Version: "v1", Resource: "configmaps"}
	dri := s.dynamicClient.Resource(gvr).Namespace(namespace)

	created, err := dri.Create(ctx, obj, metav1.CreateOptions{})
	if apierrors.IsAlreadyExists(err) {
		// 재배포: 기존 ConfigMap 덮어쓰기 (롤백 대상 아님)
		existing, errGet := dri.Get(ctx, envConfigName, metav1.GetOptions{})
		if errGet != nil {
			return nil, errGet
		}
		obj.SetResourceVersion(existing.GetResourceVersion())
		_, err = dri.Update(ctx, obj, metav1.UpdateOptions{})
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	return &CreatedResource{
		Version:   "v1",
		Kind:      "ConfigMap",
		Name:      created.GetName(),
		Namespace: namespace,
		UID:       created.GetUID(),
	}, nil
}

// applyManifests iterates over yamls in a directory, applies replacements, and creates resources.
// ignoreExists: if true, "already exists" error is ignored and resource is NOT returned as created.
func (s *K8sService) applyManifests(ctx context.Context, dir string, replacements map[string]string, defaultNamespace string, ignoreExists bool) ([]CreatedResource, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var created []CreatedResource
	decUnstructured := yaml.NewDecodingSerializer(unstructured.UnstructuredJSONScheme)

	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".yaml") {
			continue
		}

		content, err := os.ReadFile(filepath.Join(dir, file.Name()))
		if err != nil {
			return created, fmt.Errorf("failed to read file %s: %w", file.Name(), err)
		}

		text := string(content)
		for k, v := range replacements {
			text = strings.ReplaceAll(text, k, v)
		}

		for _, doc := range strings.Split(text, "\n---\n") {
			if strings.TrimSpace(doc) == "" {
				continue
			}

			obj := &unstructured.Unstructured{}
			_, gvk, err := decUnstructured.Decode([]byte(doc), nil, obj)
			if err != nil {
				return created, fmt.Errorf("failed to decode yaml in %s: %w", file.Name(), err)
			}

			mapping, err := s.mapper.RESTMapping(gvk.GroupKind(), gvk.Version)
			if err != nil {
				return created, fmt.Errorf("failed to find mapping for %s: %w", gvk.String(), err)
			}

			var dri dynamic.ResourceInterface
			if mapping.Scope.Name() == meta.RESTScopeNameNamespace {
				if obj.GetNamespace() == "" {
					obj.SetNamespace(defaultNamespace)
				}
				dri = s.dynamicClient.Resource(mapping.Resource).Namespace(obj.GetNamespace())
			} else {
				dri = s.dynamicClient.Resource(mapping.Resource)
			}

			createdObj, err := dri.Create(ctx, obj, metav1.CreateOptions{})
			if err != nil {
				if apierrors.IsAlreadyExists(err) {
					// 이미 있는 리소스는 이번 호출이 만든 것이 아니므로 롤백 대상에서 제외
					s.logger.Info("resource already exists, skipping",
						zap.String("kind", gvk.Kind),
						zap.String("namespace", obj.GetNamespace()),
						zap.String("name", obj.GetName()),
						zap.Bool("init", ignoreExists),
					)
					continue
				}
				return created, fmt.Errorf("failed to create resource %s: %w", gvk.Kind, err)
			}

			created = append(created, CreatedResource{
				Group:     gvk.Group,
				Version:   gvk.Version,
				Kind:      gvk.Kind,
				Name:      createdObj.GetName(),
				Namespace: createdObj.GetNamespace(),
				UID:       createdObj.GetUID(),
			})
		}
	}
	return created, nil
}

// deleteResource deletes a specific resource
func (s *K8sService) deleteResource(ctx context.Context, res CreatedResource) error {
	gvk := schema.GroupVersionKind{Group: res.Group, Version: res.Version, Kind: res.Kind}
	mapping, err := s.mapper.RESTMapping(gvk.GroupKind(), gvk.Version)
	if err != nil {
		return err
	}

	var dri dynamic.ResourceInterface
	if mapping.Scope.Name() == meta.RESTScopeNameNamespace {
		dri = s.dynamicClient.Resource(mapping.Resource).Namespace(res.Namespace)
	} else {
		dri = s.dynamicClient.Resource(mapping.Resource)
	}

	// 백그라운드 삭제 (K8s가 알아서 GC하도록)
	deletePolicy := metav1.DeletePropagationBackground
	return dri.Delete(ctx, res.Name, metav1.DeleteOptions{PropagationPolicy: &deletePolicy})
}

// Status 는 Deployment 의 replica 상태를 Vercel readyState 값으로 변환합니다.
// deploymentID 는 "namespace/name" 형식입니다.
func (s *K8sService) Status(ctx context.Context, deploymentID string, _ hosting.Credentials) (*hosting.Status, error) {
	namespace, name, ok := strings.Cut(deploymentID, "/")
	if !ok || namespace == "" || name == "" {
		return nil, fmt.Errorf("invalid deployment id: %q", deploymentID)
	}

	gvr := schema.GroupVersionResource{Group: "apps", Version: "v1", Resource: "deployments"}
	obj, err := s.dynamicClient.Resource(gvr).Namespace(namespace).Get(ctx, name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return &hosting.Status{State: hosting.StateCanceled, Message: "deployment no longer exists"}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deployment: %w", err)
	}

	url := ""
	if host := obj.GetAnnotations()[hostAnnotation]; host != "" {
		url = "https://" + host
	}

	// ProgressDeadlineExceeded 면 실패로 봅니다
	conditions, _, _ := unstructured.NestedSlice(obj.Object, "status", "conditions")
	for _, c := range conditions {
		cond, ok := c.(map[string]interface{})
		if !ok {
			continue
		}
		if cond["type"] == "Progressing" && cond["reason"] == "ProgressDeadlineExceeded" {
			msg, _ := cond["message"].(string)
			return &hosting.Status{State: hosting.StateError, Message: msg}, nil
		}
	}

	desired, found, _ := unstructured.NestedInt64(obj.Object, "spec", "replicas")
	if !found {
		desired = 1
	}
	available, _, _ := unstructured.NestedInt64(obj.Object, "status", "availableReplicas")

	if desired > 0 && available >= desired {
		return &hosting.Status{State: hosting.StateReady, URL: url}, nil
	}
	return &hosting.Status{State: hosting.StateBuilding, URL: url}, nil
}
