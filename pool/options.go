package pool

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

// LoadOptions 从配置文件读取连接池配置，按扩展名选择解码器
// 支持 json、yaml、toml、ini；读取后应用 def tag 默认值
func LoadOptions(path string) (*Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to read options file %s", path)
	}

	options := &Options{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, options)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, options)
	case ".toml":
		err = toml.Unmarshal(data, options)
	case ".ini":
		var file *ini.File
		file, err = ini.Load(data)
		if err == nil {
			err = file.MapTo(options)
		}
	default:
		return nil, errors.Errorf("unsupported options file format: %s", filepath.Ext(path))
	}
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to decode options file %s", path)
	}

	if err := SetDefaults(options); err != nil {
		return nil, err
	}
	return options, nil
}

// SetDefaults 为结构体设置默认值，基于 def tag
// 只处理零值字段，已有值的字段保持不变
func SetDefaults(object any) error {
	if object == nil {
		return errors.New("object cannot be nil")
	}

	rv := reflect.ValueOf(object)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return errors.New("object must be a non-nil pointer")
	}

	rv = rv.Elem()
	if rv.Kind() != reflect.Struct {
		return nil
	}

	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		fieldValue := rv.Field(i)

		if !fieldValue.CanSet() {
			continue
		}

		defTag := field.Tag.Get("def")
		if defTag == "" {
			continue
		}
		if !fieldValue.IsZero() {
			continue
		}

		if err := setFieldDefault(fieldValue, defTag); err != nil {
			return errors.WithMessagef(err, "failed to set default for field %s", field.Name)
		}
	}

	return nil
}

func setFieldDefault(fieldValue reflect.Value, defTag string) error {
	switch fieldValue.Kind() {
	case reflect.String:
		fieldValue.SetString(defTag)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v, err := strconv.ParseInt(defTag, 10, 64)
		if err != nil {
			return err
		}
		fieldValue.SetInt(v)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v, err := strconv.ParseUint(defTag, 10, 64)
		if err != nil {
			return err
		}
		fieldValue.SetUint(v)
	case reflect.Float32, reflect.Float64:
		v, err := strconv.ParseFloat(defTag, 64)
		if err != nil {
			return err
		}
		fieldValue.SetFloat(v)
	case reflect.Bool:
		v, err := strconv.ParseBool(defTag)
		if err != nil {
			return err
		}
		fieldValue.SetBool(v)
	default:
		return errors.Errorf("unsupported default value kind: %s", fieldValue.Kind())
	}
	return nil
}
